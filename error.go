package oracli

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

var EmptyConStrErr = errors.New("connection string can't be blank")
var CantCreateConnErr = func(error string) error {
	return errors.New(fmt.Sprintf("connection could not be created [%s]", error))
}
var CantPingConnection = func(error string) error { return errors.New(fmt.Sprintf("ping test failed [%s]", error)) }

var (
	// ErrStatementClosed is returned by any operation on a closed or cancelled statement
	ErrStatementClosed = errors.New("statement is closed")
	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("operation not allowed in current statement state")
	// ErrStaleIterator is returned by an iterator whose statement was executed again
	ErrStaleIterator = errors.New("iterator invalidated by a later execute")
	// ErrPoolClosed is returned by Acquire once the pool is closed
	ErrPoolClosed = errors.New("session pool is closed")
)

// SqlError wraps a diagnostic returned by the database together with the
// state the statement was in when it happened
type SqlError struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	State   StmtState `json:"state"`
	Fatal   bool      `json:"-"`
}

func (e *SqlError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("ORA-%05d: %s (state %v)", e.Code, e.Message, e.State)
	}
	return fmt.Sprintf("%s (state %v)", e.Message, e.State)
}

// NativeError is what a Cursor implementation returns for database
// diagnostics. Fatal marks errors after which the session or cursor is gone.
type NativeError struct {
	Code  int
	Text  string
	Fatal bool
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("ORA-%05d: %s", e.Code, e.Text)
}

// fatalCodes lists diagnostics after which the session or cursor can't be used
var fatalCodes = map[int]bool{
	28:   true, // session killed
	1001: true, // invalid cursor
	1012: true, // not logged on
	3113: true, // end-of-file on communication channel
	3114: true, // not connected
	3135: true, // connection lost contact
	1013: true, // user requested cancel
}

// IsFatalCode reports whether an Oracle error code ends the session or cursor
func IsFatalCode(code int) bool {
	return fatalCodes[code]
}

// newSqlError converts a cursor error into a SqlError
func newSqlError(err error, state StmtState) *SqlError {
	var sqlErr *SqlError
	if errors.As(err, &sqlErr) {
		return sqlErr
	}
	var native *NativeError
	if errors.As(err, &native) {
		return &SqlError{Code: native.Code, Message: native.Text, State: state, Fatal: native.Fatal || IsFatalCode(native.Code)}
	}
	return &SqlError{Code: -1, Message: err.Error(), State: state, Fatal: errors.Is(err, driver.ErrBadConn)}
}

// ProtocolError reports a mismatch between the declared shape and what the
// cursor describes
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// EncodingError reports a value that can't be represented in its slot
type EncodingError struct {
	Type   SqlType
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("can not encode %v: %s", e.Type, e.Reason)
}

// TruncationError reports a value longer than the capacity of its slot
type TruncationError struct {
	Type     SqlType
	Length   int
	Capacity int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("%v value of %d bytes exceeds capacity %d", e.Type, e.Length, e.Capacity)
}

// NullViolation reports a NULL cell decoded into a target without a default
type NullViolation struct {
	Type SqlType
}

func (e *NullViolation) Error() string {
	return fmt.Sprintf("NULL %v decoded into a non-nullable target", e.Type)
}

// UnknownColumn reports a filter on a column the table doesn't have
type UnknownColumn struct {
	Name string
}

func (e *UnknownColumn) Error() string {
	return fmt.Sprintf("Not found column %s", e.Name)
}

// ParseError reports a textual parameter that can't be parsed into the
// column type
type ParseError struct {
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Can not parse parameter value %s for column %s: %s", e.Value, e.Column, e.Reason)
}

// UnsupportedType reports a type the statement layer can't handle in the
// requested position
type UnsupportedType struct {
	Name string
}

func (e *UnsupportedType) Error() string {
	return fmt.Sprintf("unsupported type %s", e.Name)
}
