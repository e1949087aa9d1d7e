package oracli

import (
	"context"
)

// ExecMode tells the cursor whether execute opens a result set
type ExecMode int

const (
	// ExecDML runs the statement and reports affected rows
	ExecDML ExecMode = iota
	// ExecQuery runs the statement and leaves its rows ready to fetch
	ExecQuery
)

// Column is one entry of a cursor describe
type Column struct {
	Name       string
	Descriptor TypeDescriptor
	Nullable   bool
}

// Cursor is the native statement handle the typed layer drives. Bound and
// defined slots stay owned by the caller; the cursor reads params from and
// writes rows into them. Errors carrying database diagnostics should be
// *NativeError.
type Cursor interface {
	// Prepare parses text on the server
	Prepare(ctx context.Context, text string) error
	// BindByPos attaches an input slot to the 1-based position pos
	BindByPos(pos int, slot *Slot) error
	// DefineByPos attaches an output slot to the 1-based select list position pos
	DefineByPos(pos int, slot *Slot) error
	// Describe returns the select list of the prepared statement
	Describe(ctx context.Context) ([]Column, error)
	// Execute runs the statement with row 0 of every bound slot. ExecDML
	// returns the affected row count.
	Execute(ctx context.Context, mode ExecMode) (int64, error)
	// Fetch fills up to n rows of the defined slots starting at row 0 and
	// reports how many were filled and whether the result set is exhausted
	Fetch(ctx context.Context, n int) (fetched int, done bool, err error)
	// Cancel asks the server to abort whatever the cursor is running
	Cancel() error
	// Close releases the cursor
	Close() error
}

// Session is one checked out database session. It exclusively owns the
// cursors it creates.
type Session interface {
	NewCursor() (Cursor, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ConnectionSource hands out sessions. A session is held by one goroutine
// between Acquire and Release.
type ConnectionSource interface {
	Acquire(ctx context.Context) (Session, error)
	Release(s Session)
}
