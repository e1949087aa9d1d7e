package oracli

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Indicator sits next to every cell: -1 is NULL, 0 is a value, a positive
// number is the original length of a truncated value
type Indicator int16

const (
	IndNull  Indicator = -1
	IndValue Indicator = 0
)

// codec turns a raw cell into a Go value and back. Implementations are
// stateless; one instance per SqlType lives in the registry.
//
// decode receives the whole cell, its indicator and the returned length n.
// It returns nil for NULL. encode returns the written length, or null=true
// when the value must be bound as NULL.
type codec interface {
	decode(cell []byte, ind Indicator, n int) (any, error)
	encode(v any, cell []byte) (n int, null bool, err error)
}

// truncated turns a positive indicator into an error for fixed width types
func truncated(t SqlType, ind Indicator, capacity int) error {
	if ind > 0 {
		return &TruncationError{Type: t, Length: int(ind), Capacity: capacity}
	}
	return nil
}

// -----------------------------------------------------
// integers
// -----------------------------------------------------

type intCodec struct{ width int }

func (c intCodec) sqlType() SqlType {
	switch c.width {
	case 2:
		return Int16
	case 4:
		return Int32
	}
	return Int64
}

func (c intCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(c.sqlType(), ind, c.width); err != nil {
		return nil, err
	}
	switch c.width {
	case 2:
		return int16(binary.NativeEndian.Uint16(cell)), nil
	case 4:
		return int32(binary.NativeEndian.Uint32(cell)), nil
	}
	return int64(binary.NativeEndian.Uint64(cell)), nil
}

func (c intCodec) encode(v any, cell []byte) (int, bool, error) {
	if v == nil {
		return 0, true, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, false, &EncodingError{Type: c.sqlType(), Reason: fmt.Sprintf("unsupported Go type %T", v)}
	}
	switch c.width {
	case 2:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return 0, false, &EncodingError{Type: Int16, Reason: fmt.Sprintf("%d out of range", n)}
		}
		binary.NativeEndian.PutUint16(cell, uint16(int16(n)))
	case 4:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false, &EncodingError{Type: Int32, Reason: fmt.Sprintf("%d out of range", n)}
		}
		binary.NativeEndian.PutUint32(cell, uint32(int32(n)))
	default:
		binary.NativeEndian.PutUint64(cell, uint64(n))
	}
	return c.width, false, nil
}

type uintCodec struct{ width int }

func (c uintCodec) sqlType() SqlType {
	switch c.width {
	case 2:
		return UInt16
	case 4:
		return UInt32
	}
	return UInt64
}

func (c uintCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(c.sqlType(), ind, c.width); err != nil {
		return nil, err
	}
	switch c.width {
	case 2:
		return binary.NativeEndian.Uint16(cell), nil
	case 4:
		return binary.NativeEndian.Uint32(cell), nil
	}
	return binary.NativeEndian.Uint64(cell), nil
}

func (c uintCodec) encode(v any, cell []byte) (int, bool, error) {
	if v == nil {
		return 0, true, nil
	}
	n, ok := toUint64(v)
	if !ok {
		return 0, false, &EncodingError{Type: c.sqlType(), Reason: fmt.Sprintf("unsupported or negative value %v (%T)", v, v)}
	}
	switch c.width {
	case 2:
		if n > math.MaxUint16 {
			return 0, false, &EncodingError{Type: UInt16, Reason: fmt.Sprintf("%d out of range", n)}
		}
		binary.NativeEndian.PutUint16(cell, uint16(n))
	case 4:
		if n > math.MaxUint32 {
			return 0, false, &EncodingError{Type: UInt32, Reason: fmt.Sprintf("%d out of range", n)}
		}
		binary.NativeEndian.PutUint32(cell, uint32(n))
	default:
		binary.NativeEndian.PutUint64(cell, n)
	}
	return c.width, false, nil
}

// -----------------------------------------------------
// float
// -----------------------------------------------------

type floatCodec struct{}

func (floatCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(Float64, ind, 8); err != nil {
		return nil, err
	}
	return math.Float64frombits(binary.NativeEndian.Uint64(cell)), nil
}

func (floatCodec) encode(v any, cell []byte) (int, bool, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		n, ok := toInt64(v)
		if !ok {
			return 0, false, &EncodingError{Type: Float64, Reason: fmt.Sprintf("unsupported Go type %T", v)}
		}
		f = float64(n)
	}
	binary.NativeEndian.PutUint64(cell, math.Float64bits(f))
	return 8, false, nil
}

// -----------------------------------------------------
// varchar, empty and NULL are the same thing in Oracle
// -----------------------------------------------------

type varcharCodec struct{}

func (varcharCodec) decode(cell []byte, ind Indicator, n int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if n > len(cell) {
		n = len(cell)
	}
	return string(cell[:n]), nil
}

func (varcharCodec) encode(v any, cell []byte) (int, bool, error) {
	var b []byte
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case string:
		b = []byte(x)
	case []byte:
		b = x
	case fmt.Stringer:
		b = []byte(x.String())
	default:
		return 0, false, &EncodingError{Type: Varchar, Reason: fmt.Sprintf("unsupported Go type %T", v)}
	}
	if len(b) == 0 {
		return 0, true, nil
	}
	if len(b) > len(cell) {
		return 0, false, &TruncationError{Type: Varchar, Length: len(b), Capacity: len(cell)}
	}
	return copy(cell, b), false, nil
}

// -----------------------------------------------------
// boolean, carried as a 16 bit unsigned integer
// -----------------------------------------------------

type boolCodec struct{}

func (boolCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(Boolean, ind, 2); err != nil {
		return nil, err
	}
	return binary.NativeEndian.Uint16(cell) != 0, nil
}

func (boolCodec) encode(v any, cell []byte) (int, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case bool:
		var n uint16
		if x {
			n = 1
		}
		binary.NativeEndian.PutUint16(cell, n)
		return 2, false, nil
	}
	return 0, false, &EncodingError{Type: Boolean, Reason: fmt.Sprintf("unsupported Go type %T", v)}
}

// -----------------------------------------------------
// date and timestamp
// -----------------------------------------------------

type dateCodec struct{}

func (dateCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(Date, ind, DateWidth); err != nil {
		return nil, err
	}
	return DecodeDate(cell)
}

func (dateCodec) encode(v any, cell []byte) (int, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case time.Time:
		return DateWidth, false, EncodeDate(x, cell)
	}
	return 0, false, &EncodingError{Type: Date, Reason: fmt.Sprintf("unsupported Go type %T", v)}
}

type dateTimeCodec struct{}

func (dateTimeCodec) decode(cell []byte, ind Indicator, _ int) (any, error) {
	if ind == IndNull {
		return nil, nil
	}
	if err := truncated(DateTime, ind, DateTimeWidth); err != nil {
		return nil, err
	}
	return DecodeDateTime(cell)
}

func (dateTimeCodec) encode(v any, cell []byte) (int, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case time.Time:
		return DateTimeWidth, false, EncodeDateTime(x, cell)
	}
	return 0, false, &EncodingError{Type: DateTime, Reason: fmt.Sprintf("unsupported Go type %T", v)}
}

// putCivil writes century, year, month and day with Oracle's excess-100
// notation for the first two bytes
func putCivil(t SqlType, tm time.Time, cell []byte) error {
	y := tm.Year()
	if y < 1 || y > 9999 {
		return &EncodingError{Type: t, Reason: fmt.Sprintf("year %d out of range", y)}
	}
	cell[0] = byte(y/100 + 100)
	cell[1] = byte(y%100 + 100)
	cell[2] = byte(tm.Month())
	cell[3] = byte(tm.Day())
	return nil
}

// civil reads back what putCivil wrote and validates the components
func civil(t SqlType, cell []byte) (int, time.Month, int, error) {
	y := (int(cell[0])-100)*100 + int(cell[1]) - 100
	m := int(cell[2])
	d := int(cell[3])
	if y < 1 || y > 9999 || m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, 0, &EncodingError{Type: t, Reason: fmt.Sprintf("bad date components %v", cell[:4])}
	}
	if time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Day() != d {
		return 0, 0, 0, &EncodingError{Type: t, Reason: fmt.Sprintf("day %d does not exist in %d-%02d", d, y, m)}
	}
	return y, time.Month(m), d, nil
}

// EncodeDate writes the 7 byte Oracle DATE form of tm's calendar day into
// cell. The time of day is written as midnight.
func EncodeDate(tm time.Time, cell []byte) error {
	if len(cell) < DateWidth {
		return &TruncationError{Type: Date, Length: DateWidth, Capacity: len(cell)}
	}
	if err := putCivil(Date, tm, cell); err != nil {
		return err
	}
	cell[4], cell[5], cell[6] = 1, 1, 1
	return nil
}

// DecodeDate reads a 7 byte Oracle DATE and returns the calendar day in UTC.
// The time bytes are ignored.
func DecodeDate(cell []byte) (time.Time, error) {
	if len(cell) < DateWidth {
		return time.Time{}, &EncodingError{Type: Date, Reason: fmt.Sprintf("cell of %d bytes", len(cell))}
	}
	y, m, d, err := civil(Date, cell)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// EncodeDateTime writes the 11 byte Oracle TIMESTAMP form of tm: the DATE
// layout with hour, minute and second stored +1, then the nanoseconds as a
// big-endian uint32
func EncodeDateTime(tm time.Time, cell []byte) error {
	if len(cell) < DateTimeWidth {
		return &TruncationError{Type: DateTime, Length: DateTimeWidth, Capacity: len(cell)}
	}
	if err := putCivil(DateTime, tm, cell); err != nil {
		return err
	}
	cell[4] = byte(tm.Hour() + 1)
	cell[5] = byte(tm.Minute() + 1)
	cell[6] = byte(tm.Second() + 1)
	binary.BigEndian.PutUint32(cell[7:11], uint32(tm.Nanosecond()))
	return nil
}

// DecodeDateTime inverts EncodeDateTime. The result is in UTC.
func DecodeDateTime(cell []byte) (time.Time, error) {
	if len(cell) < DateTimeWidth {
		return time.Time{}, &EncodingError{Type: DateTime, Reason: fmt.Sprintf("cell of %d bytes", len(cell))}
	}
	y, m, d, err := civil(DateTime, cell)
	if err != nil {
		return time.Time{}, err
	}
	hh, mi, ss := int(cell[4])-1, int(cell[5])-1, int(cell[6])-1
	if hh < 0 || hh > 23 || mi < 0 || mi > 59 || ss < 0 || ss > 59 {
		return time.Time{}, &EncodingError{Type: DateTime, Reason: fmt.Sprintf("bad time components %v", cell[4:7])}
	}
	ns := binary.BigEndian.Uint32(cell[7:11])
	if ns > 999999999 {
		return time.Time{}, &EncodingError{Type: DateTime, Reason: fmt.Sprintf("bad fractional seconds %d", ns)}
	}
	return time.Date(y, m, d, hh, mi, ss, int(ns), time.UTC), nil
}

// -----------------------------------------------------
// helpers
// -----------------------------------------------------

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}
