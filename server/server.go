// Package server exposes dynamic queries over HTTP
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/erikwco/oracli/v3/config"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"go.uber.org/ratelimit"
)

const (
	// DefConnTimeout is used as timeout duration in the HTTP server.
	DefConnTimeout = 30 * time.Second
	// HeaderRequestID carries the id given to every request
	HeaderRequestID = "X-Request-Id"
)

// Catalog is what the server needs from the metadata cache
type Catalog interface {
	Get(ctx context.Context, schema, table string) (*catalog.TableInfo, error)
	Tables() []string
}

// Deps are the collaborators of the server
type Deps struct {
	Source  oracli.ConnectionSource
	Catalog Catalog
	// Health reports whether the database answers, nil means always healthy
	Health func(ctx context.Context) error
}

type Server struct {
	cfg      config.Config
	deps     Deps
	engine   *gin.Engine
	limit    ratelimit.Limiter
	ready    *atomic.Bool
	log      *zerolog.Logger
	listener net.Listener
	hsrv     *http.Server
	done     chan struct{}
}

// NewServer builds the routes, nothing listens until Start
func NewServer(cfg config.Config, deps Deps, log *zerolog.Logger) *Server {
	h := &Server{
		cfg:   cfg,
		deps:  deps,
		limit: ratelimit.NewUnlimited(),
		ready: atomic.NewBool(true),
		log:   log,
	}
	if cfg.API.RateLimit > 0 {
		h.limit = ratelimit.New(cfg.API.RateLimit)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		h.rateLimit,
		h.readyState,
		h.requestID,
		h.attachLogger,
	)

	h.registerAPI(engine.Group("/api/v1"))
	engine.GET("/health", h.Health)
	engine.GET("/metrics", gin.WrapF(promhttp.Handler().ServeHTTP))
	if cfg.API.Pprof {
		pprof.RouteRegister(engine.Group("debug"), "/pprof")
	}
	h.engine = engine
	return h
}

// Handler returns the HTTP handler of the server
func (h *Server) Handler() http.Handler {
	return h.engine.Handler()
}

// Start listens on the configured address and serves in the background
func (h *Server) Start() error {
	listener, err := net.Listen("tcp", h.cfg.API.Addr)
	if err != nil {
		return err
	}
	h.listener = listener
	h.hsrv = &http.Server{
		Handler:           h.engine.Handler(),
		ReadHeaderTimeout: DefConnTimeout,
		IdleTimeout:       DefConnTimeout,
	}
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		err := h.hsrv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		h.log.Info().Err(err).Msg("HTTP closed")
	}()
	h.log.Info().Msgf("+++ Listening on [%v]", listener.Addr())
	return nil
}

// Addr returns the address Start is listening on
func (h *Server) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Close stops accepting requests and waits for the ones in flight
func (h *Server) Close() error {
	h.ready.Store(false)
	if h.hsrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefConnTimeout)
	defer cancel()
	err := h.hsrv.Shutdown(ctx)
	<-h.done
	return err
}

func (h *Server) rateLimit(c *gin.Context) {
	_ = h.limit.Take()
}

func (h *Server) readyState(c *gin.Context) {
	if !h.ready.Load() {
		c.Abort()
		c.JSON(http.StatusServiceUnavailable, CreateJsonResp(http.StatusServiceUnavailable, "service not ready"))
	}
}

// requestID tags the request and its logger with an id, reusing the one the
// client sent
func (h *Server) requestID(c *gin.Context) {
	id := c.GetHeader(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(HeaderRequestID, id)
	lg := h.log.With().Str("request", id).Logger()
	c.Request = c.Request.WithContext(lg.WithContext(c.Request.Context()))
	c.Next()
}

func (h *Server) attachLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	latency := time.Since(start)

	lg := zerolog.Ctx(c.Request.Context())
	path := c.Request.URL.Path
	var ev *zerolog.Event
	if len(c.Errors) > 0 {
		ev = lg.Warn().Strs("errs", c.Errors.Errors())
	} else {
		ev = lg.Debug()
	}
	ev.Int("status", c.Writer.Status()).
		Str("method", c.Request.Method).
		Str("query", c.Request.URL.RawQuery).
		Str("ip", c.ClientIP()).
		Dur("latency", latency).
		Msg(path)
}
