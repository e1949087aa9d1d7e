package oracli

import (
	"context"
	"fmt"
)

// ResultsProvider describes a results shape and builds a value of type R from
// one fetched row
type ResultsProvider[R any] interface {
	// SQLDescriptors returns one descriptor per select list column, in order
	SQLDescriptors() []TypeDescriptor
	// GenResult decodes a row view; the view is only valid during the call
	GenResult(rs ResultSet) (R, error)
}

// Query is a statement with a results shape bound to it
type Query[P, R any] struct {
	stmt    *Statement[P]
	results ResultsProvider[R]
	batch   int
}

// NewQuery defines the columns of rp on stmt and allocates a result buffer
// for batch rows. The number of columns must match the cursor's describe and
// no character column may be declared narrower than described.
// Parameters:
// @stmt: a Prepared statement, it becomes Bound
// @rp: results shape
// @batch: rows per fetch round trip
func NewQuery[P, R any](ctx context.Context, stmt *Statement[P], rp ResultsProvider[R], batch int) (*Query[P, R], error) {
	state := stmt.State()
	if state == StateClosed {
		return nil, ErrStatementClosed
	}
	if state != StatePrepared {
		return nil, fmt.Errorf("%w: query in %v", ErrInvalidState, state)
	}

	descs := rp.SQLDescriptors()
	cols, err := stmt.Describe(ctx)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(descs) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("statement describes %d columns, results shape declares %d", len(cols), len(descs))}
	}
	for i, col := range cols {
		// a narrower character cell would keep only a prefix of the value
		if descs[i].Type == Varchar && col.Descriptor.Type == Varchar && descs[i].MaxLen < col.Descriptor.MaxLen {
			return nil, &ProtocolError{Reason: fmt.Sprintf("column %d [%s] is described %d wide, results shape declares %d",
				i+1, col.Name, col.Descriptor.MaxLen, descs[i].MaxLen)}
		}
	}

	rbuf, err := NewResultBuffer(descs, batch)
	if err != nil {
		return nil, err
	}
	for i, slot := range rbuf.Slots() {
		slot.Name = cols[i].Name
		if err := stmt.cursor.DefineByPos(i+1, slot); err != nil {
			return nil, stmt.fail(err, StatePrepared)
		}
	}
	stmt.rbuf = rbuf
	if err := stmt.transition(StatePrepared, StateBound); err != nil {
		return nil, err
	}
	return &Query[P, R]{stmt: stmt, results: rp, batch: batch}, nil
}

// Statement returns the underlying statement
func (q *Query[P, R]) Statement() *Statement[P] { return q.stmt }

// Close closes the underlying statement
func (q *Query[P, R]) Close() error { return q.stmt.Close() }

// Iter executes the statement with input and returns an iterator over its
// rows
func (q *Query[P, R]) Iter(ctx context.Context, input P) (*QueryIterator[P, R], error) {
	if _, err := q.stmt.execute(ctx, input); err != nil {
		return nil, err
	}
	return &QueryIterator[P, R]{q: q, gen: q.stmt.gen}, nil
}

// FetchOne executes and fetches a single row. Further rows of the result set
// are discarded. ok is false when the statement returned no rows.
func (q *Query[P, R]) FetchOne(ctx context.Context, input P) (r R, ok bool, err error) {
	if _, err = q.stmt.execute(ctx, input); err != nil {
		return r, false, err
	}
	got, _, err := q.stmt.fetch(ctx, 1)
	if err != nil || got == 0 {
		return r, false, err
	}
	r, err = q.results.GenResult(q.stmt.rbuf.Row(0))
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

// FetchList executes and fetches every row, batch rows per round trip
func (q *Query[P, R]) FetchList(ctx context.Context, input P) ([]R, error) {
	it, err := q.Iter(ctx, input)
	if err != nil {
		return nil, err
	}
	var out []R
	for {
		r, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, r)
	}
}

type iterState int

const (
	iterReady iterState = iota
	iterHasBatch
	iterExhausted
)

// QueryIterator walks the rows of one execute. It's single pass: every row is
// decoded once and an exhausted iterator never goes back to the cursor.
type QueryIterator[P, R any] struct {
	q     *Query[P, R]
	gen   uint64
	state iterState
	n, i  int
	done  bool
}

// Next returns the next row, ok is false once the rows are exhausted
func (it *QueryIterator[P, R]) Next(ctx context.Context) (r R, ok bool, err error) {
	if it.state == iterExhausted {
		return r, false, nil
	}
	if it.gen != it.q.stmt.gen {
		it.state = iterExhausted
		return r, false, ErrStaleIterator
	}

	if it.state == iterHasBatch {
		if it.i+1 < it.n {
			it.i++
			return it.decode()
		}
		if it.done {
			it.state = iterExhausted
			return r, false, nil
		}
	}

	got, done, err := it.q.stmt.fetch(ctx, it.q.batch)
	if err != nil {
		it.state = iterExhausted
		return r, false, err
	}
	if got == 0 {
		it.state = iterExhausted
		return r, false, nil
	}
	it.state, it.n, it.i, it.done = iterHasBatch, got, 0, done
	return it.decode()
}

func (it *QueryIterator[P, R]) decode() (R, bool, error) {
	r, err := it.q.results.GenResult(it.q.stmt.rbuf.Row(it.i))
	if err != nil {
		var zero R
		return zero, false, err
	}
	return r, true, nil
}
