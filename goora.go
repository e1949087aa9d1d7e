package oracli

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sijms/go-ora/v2/network"
)

var (
	_ Session = (*oraSession)(nil)
	_ Cursor  = (*oraCursor)(nil)
)

// oraSession is a Session over one *sql.Conn checked out of the go-ora pool
type oraSession struct {
	conn    *sql.Conn
	log     *zerolog.Logger
	mu      sync.Mutex
	cursors map[*oraCursor]struct{}
}

func newOraSession(conn *sql.Conn, log *zerolog.Logger) *oraSession {
	return &oraSession{conn: conn, log: log, cursors: make(map[*oraCursor]struct{})}
}

func (s *oraSession) NewCursor() (Cursor, error) {
	c := &oraCursor{sess: s}
	s.mu.Lock()
	s.cursors[c] = struct{}{}
	s.mu.Unlock()
	return c, nil
}

func (s *oraSession) Commit(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "COMMIT")
	return nativeError(err)
}

func (s *oraSession) Rollback(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "ROLLBACK")
	return nativeError(err)
}

func (s *oraSession) forget(c *oraCursor) {
	s.mu.Lock()
	delete(s.cursors, c)
	s.mu.Unlock()
}

// close closes the cursors still open and hands the connection back to the
// database/sql pool
func (s *oraSession) close() error {
	s.mu.Lock()
	open := make([]*oraCursor, 0, len(s.cursors))
	for c := range s.cursors {
		open = append(open, c)
	}
	s.mu.Unlock()
	for _, c := range open {
		s.log.Warn().Msgf("cursor [%v] still open on release, closing it", c.text)
		_ = c.Close()
	}
	return s.conn.Close()
}

// oraCursor implements Cursor on top of go-ora through database/sql. Params
// are read back from the bound slots at execute and fetched rows are encoded
// into the defined slots, so the typed layer above sees the same cell layout
// whatever the driver does internally.
type oraCursor struct {
	sess    *oraSession
	text    string
	stmt    *sql.Stmt
	binds   []*Slot
	defines []*Slot
	rows    *sql.Rows
	dest    []any

	mu     sync.Mutex
	opCtx  context.Context
	cancel context.CancelFunc
}

func (c *oraCursor) Prepare(ctx context.Context, text string) error {
	stmt, err := c.sess.conn.PrepareContext(ctx, text)
	if err != nil {
		return nativeError(err)
	}
	c.text = text
	c.stmt = stmt
	return nil
}

func setPos(list []*Slot, pos int, slot *Slot) ([]*Slot, error) {
	if pos < 1 {
		return list, &ProtocolError{Reason: fmt.Sprintf("position %d", pos)}
	}
	for len(list) < pos {
		list = append(list, nil)
	}
	list[pos-1] = slot
	return list, nil
}

func (c *oraCursor) BindByPos(pos int, slot *Slot) (err error) {
	c.binds, err = setPos(c.binds, pos, slot)
	return err
}

func (c *oraCursor) DefineByPos(pos int, slot *Slot) (err error) {
	c.defines, err = setPos(c.defines, pos, slot)
	c.dest = nil
	return err
}

// args reads row 0 of every bound slot, or NULLs when describing
func (c *oraCursor) args(nulls bool) ([]any, error) {
	out := make([]any, len(c.binds))
	for i, slot := range c.binds {
		if slot == nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("position %d not bound", i+1)}
		}
		var v any
		if !nulls {
			x, err := slot.Value(0)
			if err != nil {
				return nil, err
			}
			v = driverArg(x)
		}
		if slot.Name != "" {
			out[i] = sql.Named(slot.Name, v)
		} else {
			out[i] = v
		}
	}
	return out, nil
}

// driverArg maps decoded cell values onto what go-ora binds natively
func driverArg(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	}
	return v
}

// watch ties an operation to the caller's ctx while keeping the result set
// alive after the call returns; Cancel aborts it from another goroutine
func (c *oraCursor) watch(ctx context.Context) (context.Context, func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		var opCtx context.Context
		opCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
		c.opCtx = opCtx
	}
	return c.opCtx, context.AfterFunc(ctx, c.cancel)
}

func (c *oraCursor) closeRows() {
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

func (c *oraCursor) Execute(ctx context.Context, mode ExecMode) (int64, error) {
	if c.stmt == nil {
		return 0, &ProtocolError{Reason: "execute before prepare"}
	}
	c.closeRows()
	args, err := c.args(false)
	if err != nil {
		return 0, err
	}

	opCtx, stop := c.watch(ctx)
	defer stop()

	if mode == ExecQuery {
		rows, err := c.stmt.QueryContext(opCtx, args...)
		if err != nil {
			return 0, nativeError(err)
		}
		c.rows = rows
		return 0, nil
	}
	res, err := c.stmt.ExecContext(opCtx, args...)
	if err != nil {
		return 0, nativeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nativeError(err)
	}
	return n, nil
}

// scanDest picks a database/sql destination per defined column
func (c *oraCursor) scanDest() []any {
	if c.dest != nil {
		return c.dest
	}
	c.dest = make([]any, len(c.defines))
	for i, slot := range c.defines {
		switch slot.desc.Type {
		case Float64:
			c.dest[i] = &sql.NullFloat64{}
		case Varchar, UInt64:
			c.dest[i] = &sql.NullString{}
		case Date, DateTime:
			c.dest[i] = &sql.NullTime{}
		default:
			c.dest[i] = &sql.NullInt64{}
		}
	}
	return c.dest
}

// scanned converts a filled destination into the value the slot codec takes
func scanned(t SqlType, dest any) (any, error) {
	switch d := dest.(type) {
	case *sql.NullFloat64:
		if !d.Valid {
			return nil, nil
		}
		return d.Float64, nil
	case *sql.NullTime:
		if !d.Valid {
			return nil, nil
		}
		return d.Time, nil
	case *sql.NullString:
		if !d.Valid {
			return nil, nil
		}
		if t == UInt64 {
			return strconv.ParseUint(d.String, 10, 64)
		}
		return d.String, nil
	case *sql.NullInt64:
		if !d.Valid {
			return nil, nil
		}
		if t == Boolean {
			return d.Int64 != 0, nil
		}
		return d.Int64, nil
	}
	return nil, fmt.Errorf("unexpected scan destination %T", dest)
}

func (c *oraCursor) Fetch(ctx context.Context, n int) (int, bool, error) {
	if c.rows == nil {
		return 0, true, nil
	}
	dest := c.scanDest()

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	got := 0
	for got < n {
		if !c.rows.Next() {
			err := c.rows.Err()
			c.closeRows()
			return got, true, nativeError(err)
		}
		if err := c.rows.Scan(dest...); err != nil {
			return got, false, nativeError(err)
		}
		for i, slot := range c.defines {
			v, err := scanned(slot.desc.Type, dest[i])
			if err != nil {
				return got, false, &ProtocolError{Reason: fmt.Sprintf("column %d: %v", i+1, err)}
			}
			if err := slot.Store(got, v); err != nil {
				return got, false, &ProtocolError{Reason: fmt.Sprintf("column %d: %v", i+1, err)}
			}
		}
		got++
	}
	return got, false, nil
}

func (c *oraCursor) Describe(ctx context.Context) ([]Column, error) {
	if c.rows != nil {
		cts, err := c.rows.ColumnTypes()
		if err != nil {
			return nil, nativeError(err)
		}
		return columnsOf(cts)
	}
	// describe only: an inline view that returns no rows, binds set to NULL
	args, err := c.args(true)
	if err != nil {
		return nil, err
	}
	rows, err := c.sess.conn.QueryContext(ctx, "SELECT * FROM ("+c.text+") WHERE 1 = 0", args...)
	if err != nil {
		return nil, nativeError(err)
	}
	defer func() {
		_ = rows.Close()
	}()
	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, nativeError(err)
	}
	return columnsOf(cts)
}

func columnsOf(cts []*sql.ColumnType) ([]Column, error) {
	out := make([]Column, len(cts))
	for i, ct := range cts {
		precision, scale, _ := ct.DecimalSize()
		length, _ := ct.Length()
		nullable, _ := ct.Nullable()
		desc, err := DescriptorFor(ct.DatabaseTypeName(), int(precision), int(scale), int(length))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
		}
		out[i] = Column{Name: ct.Name(), Descriptor: desc, Nullable: nullable}
	}
	return out, nil
}

func (c *oraCursor) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *oraCursor) Close() error {
	c.closeRows()
	c.sess.forget(c)
	if c.stmt == nil {
		return nil
	}
	err := c.stmt.Close()
	c.stmt = nil
	return nativeError(err)
}

// nativeError maps go-ora diagnostics onto NativeError
func nativeError(err error) error {
	if err == nil {
		return nil
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return &NativeError{Code: oraErr.ErrCode, Text: oraErr.ErrMsg, Fatal: IsFatalCode(oraErr.ErrCode)}
	}
	if errors.Is(err, context.Canceled) {
		return &NativeError{Code: 1013, Text: "user requested cancel of current operation", Fatal: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NativeError{Code: 1013, Text: "deadline exceeded", Fatal: true}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return &NativeError{Code: 3113, Text: err.Error(), Fatal: true}
	}
	return err
}
