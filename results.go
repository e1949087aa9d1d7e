package oracli

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrStaleView is returned when a row view is read after the buffer was
// refilled by a later fetch
var ErrStaleView = errors.New("row view used after the next fetch")

// ResultBuffer owns the cells a fetch batch is defined into
type ResultBuffer struct {
	*arena
	descs []TypeDescriptor
	gen   uint64
}

// NewResultBuffer allocates the buffer for descs, batch rows each
func NewResultBuffer(descs []TypeDescriptor, batch int) (*ResultBuffer, error) {
	a, err := newArena(descs, nil, batch, true)
	if err != nil {
		return nil, err
	}
	return &ResultBuffer{arena: a, descs: descs}, nil
}

// Descriptors returns the shape the buffer was built for
func (b *ResultBuffer) Descriptors() []TypeDescriptor { return b.descs }

// refill is called before every fetch; views of the previous batch go stale
func (b *ResultBuffer) refill() {
	b.gen++
	for _, s := range b.slots {
		s.clear()
	}
}

// Row returns the view over row i of the current batch
func (b *ResultBuffer) Row(i int) ResultSet {
	return ResultSet{buf: b, row: i, gen: b.gen}
}

// ResultSet is an ordered view over one fetched row, one ResultValue per
// column. It is valid until the next fetch on the same statement.
type ResultSet struct {
	buf *ResultBuffer
	row int
	gen uint64
}

// Len returns the number of columns
func (rs ResultSet) Len() int { return len(rs.buf.slots) }

// At returns the view of column i
func (rs ResultSet) At(i int) ResultValue {
	return ResultValue{buf: rs.buf, slot: rs.buf.slots[i], row: rs.row, gen: rs.gen}
}

// Values returns every column view in declared order
func (rs ResultSet) Values() []ResultValue {
	out := make([]ResultValue, rs.Len())
	for i := range out {
		out[i] = rs.At(i)
	}
	return out
}

// ResultValue is a short lived read handle over a single result cell
type ResultValue struct {
	buf  *ResultBuffer
	slot *Slot
	row  int
	gen  uint64
}

func (v ResultValue) stale() error {
	if v.buf.gen != v.gen {
		return ErrStaleView
	}
	return nil
}

// Descriptor returns the descriptor of the column
func (v ResultValue) Descriptor() TypeDescriptor { return v.slot.desc }

// Capacity returns the declared capacity of the cell
func (v ResultValue) Capacity() int { return v.slot.width }

// Indicator returns the raw indicator of the cell
func (v ResultValue) Indicator() Indicator { return v.slot.Indicator(v.row) }

// IsNull reports whether the cell holds SQL NULL
func (v ResultValue) IsNull() bool { return v.Indicator() == IndNull }

// Bytes returns a copy of the valid data bytes of the cell
func (v ResultValue) Bytes() ([]byte, error) {
	if err := v.stale(); err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	n := v.slot.Length(v.row)
	out := make([]byte, n)
	copy(out, v.slot.Cell(v.row)[:n])
	return out, nil
}

// Value decodes the cell into its Go representation: int16/int32/int64,
// uint16/uint32/uint64, float64, string, time.Time or bool. NULL is nil.
func (v ResultValue) Value() (any, error) {
	if err := v.stale(); err != nil {
		return nil, err
	}
	return v.slot.Value(v.row)
}

func (v ResultValue) mismatch(want string) error {
	return &ProtocolError{Reason: fmt.Sprintf("column of type %v read as %s", v.slot.desc, want)}
}

// Int64 reads any integer column, NULL is 0
func (v ResultValue) Int64() (int64, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return 0, err
	}
	n, ok := toInt64(x)
	if !ok {
		if u, isUint := x.(uint64); isUint {
			return 0, &EncodingError{Type: Int64, Reason: fmt.Sprintf("%d out of range", u)}
		}
		return 0, v.mismatch("Int64")
	}
	return n, nil
}

// Int32 reads an integer column that fits in 32 bits, NULL is 0
func (v ResultValue) Int32() (int32, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if int64(int32(n)) != n {
		return 0, &EncodingError{Type: Int32, Reason: fmt.Sprintf("%d out of range", n)}
	}
	return int32(n), nil
}

// Int16 reads an integer column that fits in 16 bits, NULL is 0
func (v ResultValue) Int16() (int16, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if int64(int16(n)) != n {
		return 0, &EncodingError{Type: Int16, Reason: fmt.Sprintf("%d out of range", n)}
	}
	return int16(n), nil
}

// Uint64 reads a non negative integer column, NULL is 0
func (v ResultValue) Uint64() (uint64, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return 0, err
	}
	n, ok := toUint64(x)
	if !ok {
		return 0, v.mismatch("UInt64")
	}
	return n, nil
}

// Float64 reads a numeric column, NULL is 0
func (v ResultValue) Float64() (float64, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return 0, err
	}
	if f, ok := x.(float64); ok {
		return f, nil
	}
	if n, ok := toInt64(x); ok {
		return float64(n), nil
	}
	if n, ok := toUint64(x); ok {
		return float64(n), nil
	}
	return 0, v.mismatch("Float64")
}

// Text reads a character column. NULL and empty are the same in Oracle, so
// NULL comes back as "".
func (v ResultValue) Text() (string, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return "", err
	}
	s, ok := x.(string)
	if !ok {
		return "", v.mismatch("Varchar")
	}
	return s, nil
}

// Bool reads a boolean column, NULL is false
func (v ResultValue) Bool() (bool, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return false, err
	}
	b, ok := x.(bool)
	if !ok {
		return false, v.mismatch("Boolean")
	}
	return b, nil
}

// Time reads a Date or DateTime column. There's no sensible default for a
// NULL date, so it fails with NullViolation; use NullTime to tell them apart.
func (v ResultValue) Time() (time.Time, error) {
	t, err := v.NullTime()
	if err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, &NullViolation{Type: v.slot.desc.Type}
	}
	return t.Time, nil
}

// NullTime reads a Date or DateTime column keeping NULL apart
func (v ResultValue) NullTime() (sql.NullTime, error) {
	x, err := v.Value()
	if err != nil || x == nil {
		return sql.NullTime{}, err
	}
	t, ok := x.(time.Time)
	if !ok {
		return sql.NullTime{}, v.mismatch("DateTime")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

// NullInt64 reads an integer column keeping NULL apart
func (v ResultValue) NullInt64() (sql.NullInt64, error) {
	if v.IsNull() {
		return sql.NullInt64{}, v.stale()
	}
	n, err := v.Int64()
	return sql.NullInt64{Int64: n, Valid: err == nil}, err
}

// NullFloat64 reads a numeric column keeping NULL apart
func (v ResultValue) NullFloat64() (sql.NullFloat64, error) {
	if v.IsNull() {
		return sql.NullFloat64{}, v.stale()
	}
	f, err := v.Float64()
	return sql.NullFloat64{Float64: f, Valid: err == nil}, err
}

// NullBool reads a boolean column keeping NULL apart
func (v ResultValue) NullBool() (sql.NullBool, error) {
	if v.IsNull() {
		return sql.NullBool{}, v.stale()
	}
	b, err := v.Bool()
	return sql.NullBool{Bool: b, Valid: err == nil}, err
}
