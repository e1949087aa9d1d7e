// Package oratest is a scripted, in-memory native layer: a Session whose
// cursors answer from canned responses, so statement and query code can be
// exercised without a database.
package oratest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erikwco/oracli/v3"
	"go.uber.org/atomic"
)

var (
	_ oracli.Session          = (*Session)(nil)
	_ oracli.Cursor           = (*Cursor)(nil)
	_ oracli.ConnectionSource = (*Source)(nil)
)

// Call is what a handler sees for one describe or execute
type Call struct {
	Text     string
	Args     []any
	Describe bool
}

// Response is the canned answer to a Call
type Response struct {
	Columns      []oracli.Column
	Rows         [][]any
	RowsAffected int64
	// Err is returned by execute (or describe)
	Err error
	// FetchErr is returned by the fetch that would deliver row FetchErrAt
	FetchErr   error
	FetchErrAt int
	// Block makes execute wait until it's closed, ctx is done or the cursor
	// is cancelled
	Block chan struct{}
}

// Handler answers a call, ok false means it doesn't know the statement
type Handler func(call Call) (resp *Response, ok bool)

// Counters tallies the native calls made through a Session
type Counters struct {
	Prepares *atomic.Int64
	Binds    *atomic.Int64
	Defines  *atomic.Int64
	Describe *atomic.Int64
	Executes *atomic.Int64
	Fetches  *atomic.Int64
	Cancels  *atomic.Int64
	Closes   *atomic.Int64
}

// Session is a scripted oracli.Session
type Session struct {
	Calls Counters

	mu        sync.Mutex
	handlers  []Handler
	cursors   []*Cursor
	executed  []Call
	commits   int
	rollbacks int
	// PrepareErr, when set, fails every Prepare
	PrepareErr error
}

// NewSession creates an empty scripted session
func NewSession() *Session {
	return &Session{Calls: Counters{
		Prepares: atomic.NewInt64(0),
		Binds:    atomic.NewInt64(0),
		Defines:  atomic.NewInt64(0),
		Describe: atomic.NewInt64(0),
		Executes: atomic.NewInt64(0),
		Fetches:  atomic.NewInt64(0),
		Cancels:  atomic.NewInt64(0),
		Closes:   atomic.NewInt64(0),
	}}
}

// Normalize collapses whitespace so scripted texts don't depend on layout
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// On answers every call whose text equals text, whatever the arguments
func (s *Session) On(text string, resp Response) *Session {
	want := Normalize(text)
	return s.Handle(func(call Call) (*Response, bool) {
		if Normalize(call.Text) != want {
			return nil, false
		}
		r := resp
		return &r, true
	})
}

// Handle adds a handler, earlier handlers win
func (s *Session) Handle(h Handler) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
	return s
}

// Executed returns the calls executed so far, describes excluded
func (s *Session) Executed() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.executed...)
}

// Cursors returns every cursor created on the session
func (s *Session) Cursors() []*Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Cursor(nil), s.cursors...)
}

// Commits returns the number of commits forwarded to the session
func (s *Session) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns the number of rollbacks forwarded to the session
func (s *Session) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *Session) NewCursor() (oracli.Cursor, error) {
	c := &Cursor{sess: s, cancelled: make(chan struct{})}
	s.mu.Lock()
	s.cursors = append(s.cursors, c)
	s.mu.Unlock()
	return c, nil
}

func (s *Session) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

func (s *Session) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return nil
}

func (s *Session) answer(call Call) (*Response, error) {
	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	if !call.Describe {
		s.executed = append(s.executed, call)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		if resp, ok := h(call); ok {
			return resp, nil
		}
	}
	return nil, &oracli.NativeError{Code: 942, Text: "table or view does not exist"}
}

// Source is a oracli.ConnectionSource that always hands out the same Session
type Source struct {
	Session    *Session
	AcquireErr error
	Acquired   *atomic.Int64
	Released   *atomic.Int64
}

// NewSource wraps sess
func NewSource(sess *Session) *Source {
	return &Source{Session: sess, Acquired: atomic.NewInt64(0), Released: atomic.NewInt64(0)}
}

func (s *Source) Acquire(ctx context.Context) (oracli.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.Acquired.Inc()
	return s.Session, nil
}

func (s *Source) Release(oracli.Session) {
	s.Released.Inc()
}

// Cursor is a scripted oracli.Cursor
type Cursor struct {
	sess    *Session
	text    string
	binds   []*oracli.Slot
	defines []*oracli.Slot
	resp    *Response
	pos     int
	open    bool

	mu        sync.Mutex
	cancelled chan struct{}
	closed    bool
}

// Text returns the prepared text
func (c *Cursor) Text() string { return c.text }

// Closed reports whether Close was called
func (c *Cursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Binds returns the slots bound to the cursor, by position
func (c *Cursor) Binds() []*oracli.Slot { return c.binds }

func (c *Cursor) Prepare(_ context.Context, text string) error {
	c.sess.Calls.Prepares.Inc()
	if c.sess.PrepareErr != nil {
		return c.sess.PrepareErr
	}
	c.text = text
	return nil
}

func place(list []*oracli.Slot, pos int, slot *oracli.Slot) ([]*oracli.Slot, error) {
	if pos < 1 {
		return list, &oracli.ProtocolError{Reason: fmt.Sprintf("position %d", pos)}
	}
	for len(list) < pos {
		list = append(list, nil)
	}
	list[pos-1] = slot
	return list, nil
}

func (c *Cursor) BindByPos(pos int, slot *oracli.Slot) (err error) {
	c.sess.Calls.Binds.Inc()
	c.binds, err = place(c.binds, pos, slot)
	return err
}

func (c *Cursor) DefineByPos(pos int, slot *oracli.Slot) (err error) {
	c.sess.Calls.Defines.Inc()
	c.defines, err = place(c.defines, pos, slot)
	return err
}

func (c *Cursor) args() ([]any, error) {
	out := make([]any, len(c.binds))
	for i, slot := range c.binds {
		if slot == nil {
			return nil, &oracli.ProtocolError{Reason: fmt.Sprintf("position %d not bound", i+1)}
		}
		v, err := slot.Value(0)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *Cursor) Describe(context.Context) ([]oracli.Column, error) {
	c.sess.Calls.Describe.Inc()
	resp, err := c.sess.answer(Call{Text: c.text, Describe: true})
	if err != nil {
		return nil, err
	}
	if resp.Err != nil && resp.Columns == nil {
		return nil, resp.Err
	}
	return resp.Columns, nil
}

func (c *Cursor) Execute(ctx context.Context, mode oracli.ExecMode) (int64, error) {
	c.sess.Calls.Executes.Inc()
	args, err := c.args()
	if err != nil {
		return 0, err
	}
	resp, err := c.sess.answer(Call{Text: c.text, Args: args})
	if err != nil {
		return 0, err
	}
	if resp.Block != nil {
		select {
		case <-resp.Block:
		case <-c.cancelled:
			return 0, &oracli.NativeError{Code: 1013, Text: "user requested cancel of current operation", Fatal: true}
		case <-ctx.Done():
			return 0, &oracli.NativeError{Code: 1013, Text: ctx.Err().Error(), Fatal: true}
		}
	}
	if resp.Err != nil {
		return 0, resp.Err
	}
	if mode == oracli.ExecQuery {
		c.resp, c.pos, c.open = resp, 0, true
		return 0, nil
	}
	return resp.RowsAffected, nil
}

func (c *Cursor) Fetch(_ context.Context, n int) (int, bool, error) {
	c.sess.Calls.Fetches.Inc()
	if !c.open {
		return 0, true, nil
	}
	got := 0
	for got < n && c.pos < len(c.resp.Rows) {
		if c.resp.FetchErr != nil && c.pos == c.resp.FetchErrAt {
			c.open = false
			return got, true, c.resp.FetchErr
		}
		row := c.resp.Rows[c.pos]
		for i, slot := range c.defines {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if err := slot.Store(got, v); err != nil {
				return got, false, err
			}
		}
		c.pos++
		got++
	}
	done := c.pos >= len(c.resp.Rows)
	if done {
		c.open = false
	}
	return got, done, nil
}

func (c *Cursor) Cancel() error {
	c.sess.Calls.Cancels.Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.cancelled:
	default:
		close(c.cancelled)
	}
	return nil
}

func (c *Cursor) Close() error {
	c.sess.Calls.Closes.Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.open = false
	return nil
}
