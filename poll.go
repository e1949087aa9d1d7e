package oracli

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// PoolStats is a snapshot of the session usage of a Pool
type PoolStats struct {
	InUse     int `json:"inUse"`
	Available int `json:"available"`
	Total     int `json:"total"`
}

// Pool bounds the number of sessions checked out of a ConnectionSource at the
// same time. Acquire blocks until a session is free or ctx is done.
type Pool struct {
	name     string
	source   ConnectionSource
	total    int
	sem      chan struct{}
	inUse    *atomic.Int64
	closed   *atomic.Bool
	done     chan struct{}
	log      *zerolog.Logger
	onChange *atomic.Pointer[func(PoolStats)]
}

// NewPool creates a pool of at most maxSessions sessions over source
// Parameters:
// @name: pool name, used in logs
// @source: where sessions come from, usually a *Connection
// @maxSessions: sessions allowed in use at the same time
// @log: *zerolog.Logger
func NewPool(name string, source ConnectionSource, maxSessions int, log *zerolog.Logger) *Pool {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	log.Info().Msgf("+++ New session pool [%v] of [%v] sessions", name, maxSessions)
	return &Pool{
		name:     name,
		source:   source,
		total:    maxSessions,
		sem:      make(chan struct{}, maxSessions),
		inUse:    atomic.NewInt64(0),
		closed:   atomic.NewBool(false),
		done:     make(chan struct{}),
		log:      log,
		onChange: atomic.NewPointer[func(PoolStats)](nil),
	}
}

// OnChange registers fn to be called with the new stats after every
// checkout and release, replacing any earlier callback. It is safe to call
// while the pool is in use.
func (p *Pool) OnChange(fn func(PoolStats)) {
	if fn == nil {
		p.onChange.Store(nil)
		return
	}
	p.onChange.Store(&fn)
}

// Acquire checks a session out, waiting for a free one
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	select {
	case p.sem <- struct{}{}:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess, err := p.source.Acquire(ctx)
	if err != nil {
		<-p.sem
		p.log.Err(err).Msgf("pool [%v] could not acquire a session", p.name)
		return nil, err
	}
	p.inUse.Inc()
	p.notify()
	return sess, nil
}

// Release hands sess back to the source and frees its place in the pool
func (p *Pool) Release(sess Session) {
	p.source.Release(sess)
	p.inUse.Dec()
	<-p.sem
	p.notify()
}

// Stats returns the current usage of the pool
func (p *Pool) Stats() PoolStats {
	inUse := int(p.inUse.Load())
	return PoolStats{
		InUse:     inUse,
		Available: p.total - inUse,
		Total:     p.total,
	}
}

// Close makes further Acquire calls fail, sessions in use are still released
// normally
func (p *Pool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.log.Info().Msgf("+++ Session pool [%v] closed", p.name)
		close(p.done)
	}
}

func (p *Pool) notify() {
	if fn := p.onChange.Load(); fn != nil {
		(*fn)(p.Stats())
	}
}
