package oracli

import (
	"fmt"
	"strings"
)

// SqlType enumerates the logical types the statement layer knows how to bind
// and define
type SqlType int

// Supported logical types
const (
	Int16 SqlType = iota
	Int32
	Int64
	UInt16
	UInt32
	UInt64
	Float64
	Varchar
	Date
	DateTime
	Boolean
)

// String allow string conversion to SqlType
func (t SqlType) String() string {
	if t < Int16 || t > Boolean {
		return fmt.Sprintf("SqlType(%d)", int(t))
	}
	return [...]string{"Int16", "Int32", "Int64", "UInt16", "UInt32", "UInt64",
		"Float64", "Varchar", "Date", "DateTime", "Boolean"}[t]
}

// IsInteger reports whether t is one of the signed or unsigned integer types
func (t SqlType) IsInteger() bool {
	return t >= Int16 && t <= UInt64
}

// NativeType is the external data type code handed to the native cursor
type NativeType uint16

// Oracle external type codes used by the registry
const (
	SQLTChr       NativeType = 1
	SQLTInt       NativeType = 3
	SQLTFlt       NativeType = 4
	SQLTDat       NativeType = 12
	SQLTUin       NativeType = 68
	SQLTTimestamp NativeType = 187
)

// MaxVarcharLen is the largest character value Oracle binds or defines,
// return lengths are 16 bit
const MaxVarcharLen = 32767

// Fixed cell widths of the temporal types
const (
	DateWidth     = 7
	DateTimeWidth = 11
)

// TypeDescriptor carries everything the native layer needs to bind or define
// one slot. Two descriptors are equal when all of their fields are equal.
type TypeDescriptor struct {
	Type   SqlType
	Code   NativeType
	Width  int
	MaxLen int
}

// String renders the descriptor for logs and error messages
func (d TypeDescriptor) String() string {
	if d.Type == Varchar {
		return fmt.Sprintf("%v(%d)", d.Type, d.MaxLen)
	}
	return d.Type.String()
}

// typeInfo is one registry entry
type typeInfo struct {
	width int
	code  NativeType
	codec codec
}

// registry is filled once at init and only read afterwards
var registry = map[SqlType]typeInfo{
	Int16:    {width: 2, code: SQLTInt, codec: intCodec{width: 2}},
	Int32:    {width: 4, code: SQLTInt, codec: intCodec{width: 4}},
	Int64:    {width: 8, code: SQLTInt, codec: intCodec{width: 8}},
	UInt16:   {width: 2, code: SQLTUin, codec: uintCodec{width: 2}},
	UInt32:   {width: 4, code: SQLTUin, codec: uintCodec{width: 4}},
	UInt64:   {width: 8, code: SQLTUin, codec: uintCodec{width: 8}},
	Float64:  {width: 8, code: SQLTFlt, codec: floatCodec{}},
	Varchar:  {width: 0, code: SQLTChr, codec: varcharCodec{}},
	Date:     {width: DateWidth, code: SQLTDat, codec: dateCodec{}},
	DateTime: {width: DateTimeWidth, code: SQLTTimestamp, codec: dateTimeCodec{}},
	Boolean:  {width: 2, code: SQLTUin, codec: boolCodec{}},
}

// Lookup returns the registry entry for t as a descriptor. Varchar comes back
// with a zero capacity; use VarcharDescriptor to declare one.
func Lookup(t SqlType) (TypeDescriptor, bool) {
	info, ok := registry[t]
	if !ok {
		return TypeDescriptor{}, false
	}
	return TypeDescriptor{Type: t, Code: info.code, Width: info.width}, true
}

// Descriptor returns the descriptor of a fixed width type. It panics for
// Varchar and unknown types, both are programming errors.
func Descriptor(t SqlType) TypeDescriptor {
	d, ok := Lookup(t)
	if !ok || t == Varchar {
		panic(fmt.Sprintf("oracli: no fixed descriptor for %v", t))
	}
	return d
}

// VarcharDescriptor declares a character slot able to hold maxLen bytes
func VarcharDescriptor(maxLen int) TypeDescriptor {
	if maxLen <= 0 {
		maxLen = 1
	}
	return TypeDescriptor{Type: Varchar, Code: SQLTChr, Width: maxLen, MaxLen: maxLen}
}

// Capacity is the number of data bytes one cell of this descriptor occupies
func (d TypeDescriptor) Capacity() int {
	if d.Type == Varchar {
		return d.MaxLen
	}
	return d.Width
}

func (d TypeDescriptor) codec() codec {
	return registry[d.Type].codec
}

// validate rejects descriptors the registry can't serve
func (d TypeDescriptor) validate() error {
	info, ok := registry[d.Type]
	if !ok {
		return &UnsupportedType{Name: d.Type.String()}
	}
	if d.Type == Varchar {
		if d.MaxLen <= 0 {
			return &ProtocolError{Reason: "varchar slot declared without capacity"}
		}
		if d.MaxLen > MaxVarcharLen {
			return &TruncationError{Type: Varchar, Length: d.MaxLen, Capacity: MaxVarcharLen}
		}
		return nil
	}
	if d.Width != info.width {
		return &ProtocolError{Reason: fmt.Sprintf("%v declared with width %d, expected %d", d.Type, d.Width, info.width)}
	}
	return nil
}

// DescriptorFor maps an Oracle dictionary type (as found in ALL_TAB_COLUMNS or
// reported by the driver) to a descriptor.
// Parameters:
// @dataType: Oracle type name, e.g. NUMBER, VARCHAR2, TIMESTAMP(6)
// @precision: numeric precision, 0 when unknown
// @scale: numeric scale, anything but 0 for a plain NUMBER
// @length: byte length for character types
func DescriptorFor(dataType string, precision, scale, length int) (TypeDescriptor, error) {
	name := strings.ToUpper(strings.TrimSpace(dataType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "NUMBER", "INTEGER", "INT", "SMALLINT", "DECIMAL", "NUMERIC":
		switch {
		case scale != 0:
			// fractional digits, or a plain NUMBER whose scale is unknown
			return Descriptor(Float64), nil
		case precision == 0:
			return Descriptor(Int64), nil
		case precision <= 4:
			return Descriptor(Int16), nil
		case precision <= 9:
			return Descriptor(Int32), nil
		case precision <= 18:
			return Descriptor(Int64), nil
		default:
			return Descriptor(Float64), nil
		}
	case "FLOAT", "BINARY_FLOAT", "BINARY_DOUBLE", "REAL", "DOUBLE PRECISION":
		return Descriptor(Float64), nil
	case "VARCHAR2", "VARCHAR", "NVARCHAR2", "CHAR", "NCHAR", "ROWID", "UROWID":
		if length <= 0 {
			length = 4000
		}
		return VarcharDescriptor(length), nil
	case "DATE":
		return Descriptor(Date), nil
	case "TIMESTAMP":
		return Descriptor(DateTime), nil
	case "BOOLEAN":
		return Descriptor(Boolean), nil
	}
	return TypeDescriptor{}, &UnsupportedType{Name: dataType}
}
