package oracli

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// StmtState exposes the lifecycle state of a statement
type StmtState int32

// Statement states
const (
	StateUnbound StmtState = iota
	StatePrepared
	StateBound
	StateExecuting
	StateFetching
	StateClosed
)

// String allow string conversion to StmtState
func (s StmtState) String() string {
	if s < StateUnbound || s > StateClosed {
		return fmt.Sprintf("StmtState(%d)", int32(s))
	}
	return [...]string{"Unbound", "Prepared", "Bound", "Executing", "Fetching", "Closed"}[s]
}

// MarshalText renders the state by name in JSON error bodies
func (s StmtState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParamsProvider describes a params shape and writes an input of type P into
// it
type ParamsProvider[P any] interface {
	// Members returns the slots in bind order
	Members() []Member
	// ProjectValues writes input into the handles of projection, in order
	ProjectValues(input P, projection *ParamsProjection) error
}

// Statement couples a prepared cursor with its params shape and, once
// NewQuery is called, a results shape. A statement and everything borrowed
// from it belong to one goroutine at a time; only Cancel may be called from
// another one.
type Statement[P any] struct {
	ID string

	text      string
	cursor    Cursor
	params    ParamsProvider[P]
	pbuf      *ParamBuffer
	rbuf      *ResultBuffer
	state     *atomic.Int32
	gen       uint64
	log       zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Prepare parses text on a fresh cursor of sess and binds the members of pp
// by position into a param buffer sized for one row.
// Parameters:
// @ctx: carries the zerolog logger (zerolog.Ctx) and the deadline of the round trip
// @sess: session owning the new cursor
// @text: SQL text, parameters as :1, :2 … or :name
// @pp: params shape
func Prepare[P any](ctx context.Context, sess Session, text string, pp ParamsProvider[P]) (*Statement[P], error) {
	id := uuid.NewString()
	log := zerolog.Ctx(ctx).With().Str("stmt", id).Logger()
	log.Debug().Msgf("+++ Prepare [%v]", text)

	cursor, err := sess.NewCursor()
	if err != nil {
		return nil, newSqlError(err, StateUnbound)
	}
	s := &Statement[P]{
		ID:     id,
		text:   text,
		cursor: cursor,
		params: pp,
		state:  atomic.NewInt32(int32(StateUnbound)),
		log:    log,
	}

	if err := cursor.Prepare(ctx, text); err != nil {
		_ = cursor.Close()
		log.Err(err).Msg("prepare failed")
		return nil, newSqlError(err, StateUnbound)
	}

	s.pbuf, err = NewParamBuffer(pp.Members(), 1)
	if err != nil {
		_ = cursor.Close()
		return nil, err
	}
	for i, slot := range s.pbuf.Slots() {
		if err := cursor.BindByPos(i+1, slot); err != nil {
			_ = cursor.Close()
			log.Err(err).Msgf("bind of position %d failed", i+1)
			return nil, newSqlError(err, StateUnbound)
		}
	}

	s.state.Store(int32(StatePrepared))
	return s, nil
}

// PrepareDynamic is Prepare for a params provider picked at runtime
func PrepareDynamic(ctx context.Context, sess Session, text string, pp ParamsProvider[any]) (*Statement[any], error) {
	return Prepare[any](ctx, sess, text, pp)
}

// Text returns the SQL text of the statement
func (s *Statement[P]) Text() string { return s.text }

// State returns the current lifecycle state
func (s *Statement[P]) State() StmtState { return StmtState(s.state.Load()) }

// Params returns the param buffer, mostly useful to inspect bound values
func (s *Statement[P]) Params() *ParamBuffer { return s.pbuf }

// Describe returns the select list of the statement
func (s *Statement[P]) Describe(ctx context.Context) ([]Column, error) {
	state := s.State()
	if state == StateClosed {
		return nil, ErrStatementClosed
	}
	cols, err := s.cursor.Describe(ctx)
	if err != nil {
		return nil, s.fail(err, state)
	}
	return cols, nil
}

// Execute writes input into the param buffer and runs the statement. For a
// statement without results the affected row count is returned; a statement
// bound by NewQuery is left with its rows ready to fetch.
func (s *Statement[P]) Execute(ctx context.Context, input P) (int64, error) {
	return s.execute(ctx, input)
}

// stable is the state a failed operation falls back to
func (s *Statement[P]) stable() StmtState {
	if s.rbuf != nil {
		return StateBound
	}
	return StatePrepared
}

// transition moves from one state to another unless Cancel got there first
func (s *Statement[P]) transition(from, to StmtState) error {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		if s.State() == StateClosed {
			return ErrStatementClosed
		}
		return fmt.Errorf("%w: %v", ErrInvalidState, s.State())
	}
	return nil
}

// fail converts a cursor error into a SqlError and settles the state: fatal
// errors close the statement, anything else rolls back to the stable state
func (s *Statement[P]) fail(err error, at StmtState) error {
	sqlErr := newSqlError(err, at)
	if sqlErr.Fatal {
		s.log.Err(err).Msgf("fatal error in state %v, closing statement", at)
		_ = s.Close()
		return sqlErr
	}
	s.log.Err(err).Msgf("error in state %v", at)
	cur := s.State()
	if cur != StateClosed {
		s.state.CompareAndSwap(int32(cur), int32(s.stable()))
	}
	return sqlErr
}

func (s *Statement[P]) execute(ctx context.Context, input P) (int64, error) {
	from := s.State()
	switch from {
	case StateClosed:
		return 0, ErrStatementClosed
	case StatePrepared, StateBound, StateFetching:
	default:
		return 0, fmt.Errorf("%w: execute in %v", ErrInvalidState, from)
	}
	if err := s.transition(from, StateExecuting); err != nil {
		return 0, err
	}

	if err := s.params.ProjectValues(input, s.pbuf.Projection(0)); err != nil {
		s.state.CompareAndSwap(int32(StateExecuting), int32(s.stable()))
		return 0, err
	}

	mode := ExecDML
	if s.rbuf != nil {
		mode = ExecQuery
	}
	s.log.Debug().Msgf("+++ Execute [%v]", s.text)
	n, err := s.cursor.Execute(ctx, mode)
	if err != nil {
		return 0, s.fail(err, StateExecuting)
	}
	s.gen++

	next := StatePrepared
	if mode == ExecQuery {
		next = StateFetching
	}
	if err := s.transition(StateExecuting, next); err != nil {
		return 0, err
	}
	return n, nil
}

// fetch refills the result buffer with up to n rows
func (s *Statement[P]) fetch(ctx context.Context, n int) (int, bool, error) {
	if err := s.transition(StateFetching, StateFetching); err != nil {
		return 0, true, err
	}
	s.rbuf.refill()
	got, done, err := s.cursor.Fetch(ctx, n)
	if err != nil {
		return 0, true, s.fail(err, StateFetching)
	}
	if done || got == 0 {
		if err := s.transition(StateFetching, StateBound); err != nil {
			return 0, true, err
		}
		done = true
	}
	s.log.Debug().Msgf("+++ Fetched [%d] rows, done [%v]", got, done)
	return got, done, nil
}

// Cancel asks the cursor to abort and marks the statement closed. It can be
// called from any goroutine; the owner still calls Close to release the
// cursor.
func (s *Statement[P]) Cancel() error {
	prev := StmtState(s.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}
	s.log.Info().Msgf("+++ Cancel requested in state %v", prev)
	return s.cursor.Cancel()
}

// Close releases the cursor and the buffers. Rows not fetched yet are
// discarded.
func (s *Statement[P]) Close() error {
	s.state.Store(int32(StateClosed))
	s.closeOnce.Do(func() {
		s.log.Debug().Msg("Closing statement")
		s.closeErr = s.cursor.Close()
		if s.closeErr != nil {
			s.log.Err(s.closeErr).Msg("Error closing statement")
		}
	})
	return s.closeErr
}
