package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/erikwco/oracli/v3/dynamic"
	"github.com/erikwco/oracli/v3/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type CommonJsonResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func CreateJsonResp(code int, msg string) CommonJsonResp {
	return CommonJsonResp{
		Code:    code,
		Message: msg,
	}
}

func (h *Server) registerAPI(g *gin.RouterGroup) {
	{
		tables := g.Group("tables")
		tables.GET("/:schema/:table/:pk", h.FetchByPK)
		tables.GET("/:schema/:table", h.FetchByParams)
	}
	{
		meta := g.Group("meta")
		meta.GET("", h.ListTables)
		meta.GET("/:schema/:table", h.DescribeTable)
	}
}

// requestContext bounds a request by the query timeout
func (h *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if t := h.cfg.Query.Timeout.Duration; t > 0 {
		return context.WithTimeout(c.Request.Context(), t)
	}
	return context.WithCancel(c.Request.Context())
}

func (h *Server) FetchByPK(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	start := time.Now()

	schema, pk := c.Param("schema"), c.Param("pk")
	body, err := h.fetch(ctx, c, metrics.KindByPK, func(table *catalog.TableInfo) ([]byte, error) {
		q, err := dynamic.FromPK(schema, table, pk)
		if err != nil {
			return nil, err
		}
		return q.FetchOne(ctx, h.deps.Source)
	})
	metrics.ObserveQuery(metrics.KindByPK, start, err)
	if err != nil {
		h.writeError(c, expired(ctx, err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *Server) FetchByParams(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	start := time.Now()

	filters, err := parseFilters(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	schema := c.Param("schema")
	body, err := h.fetch(ctx, c, metrics.KindByParams, func(table *catalog.TableInfo) ([]byte, error) {
		q, err := dynamic.FromParams(schema, table, filters)
		if err != nil {
			return nil, err
		}
		return q.FetchMany(ctx, h.deps.Source, h.cfg.Query.FetchBatch)
	})
	metrics.ObserveQuery(metrics.KindByParams, start, err)
	if err != nil {
		h.writeError(c, expired(ctx, err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// fetch resolves the table of the request and runs run against it
func (h *Server) fetch(ctx context.Context, c *gin.Context, kind string, run func(*catalog.TableInfo) ([]byte, error)) ([]byte, error) {
	table, err := h.deps.Catalog.Get(ctx, c.Param("schema"), c.Param("table"))
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Msgf("+++ %v query on [%v]", kind, table.QualifiedName())
	return run(table)
}

func (h *Server) DescribeTable(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	table, err := h.deps.Catalog.Get(ctx, c.Param("schema"), c.Param("table"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *Server) ListTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": h.deps.Catalog.Tables()})
}

func (h *Server) Health(c *gin.Context) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := h.deps.Health(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, CreateJsonResp(http.StatusServiceUnavailable, err.Error()))
			return
		}
	}
	c.JSON(http.StatusOK, CreateJsonResp(http.StatusOK, "ok"))
}

// parseFilters reads COLUMN=value pairs keeping the order of the query string
func parseFilters(rawQuery string) ([]dynamic.Filter, error) {
	var filters []dynamic.Filter
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		col, err := url.QueryUnescape(key)
		if err != nil {
			return nil, &oracli.ParseError{Column: key, Value: value, Reason: err.Error()}
		}
		val, err := url.QueryUnescape(value)
		if err != nil {
			return nil, &oracli.ParseError{Column: col, Value: value, Reason: err.Error()}
		}
		filters = append(filters, dynamic.Filter{Column: col, Value: val})
	}
	return filters, nil
}

// expired reports a failure caused by the request deadline as such, the
// cursor only sees a cancelled call
func expired(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// writeError maps err onto a status, a SqlError keeps its own body
func (h *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var sqlErr *oracli.SqlError
	if errors.As(err, &sqlErr) {
		c.JSON(http.StatusInternalServerError, sqlErr)
		return
	}
	status := statusOf(err)
	c.JSON(status, CreateJsonResp(status, err.Error()))
}

func statusOf(err error) int {
	var (
		unknown     *oracli.UnknownColumn
		parse       *oracli.ParseError
		unsupported *oracli.UnsupportedType
	)
	switch {
	case errors.Is(err, catalog.ErrTableNotFound):
		return http.StatusNotFound
	case errors.As(err, &unknown), errors.As(err, &parse), errors.As(err, &unsupported),
		errors.Is(err, dynamic.ErrNoPrimaryKey), errors.Is(err, dynamic.ErrCompositeKey):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, oracli.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
