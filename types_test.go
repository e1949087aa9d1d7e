package oracli

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	tests := []struct {
		typ   SqlType
		width int
		code  NativeType
	}{
		{Int16, 2, SQLTInt},
		{Int32, 4, SQLTInt},
		{Int64, 8, SQLTInt},
		{UInt16, 2, SQLTUin},
		{UInt32, 4, SQLTUin},
		{UInt64, 8, SQLTUin},
		{Float64, 8, SQLTFlt},
		{Date, DateWidth, SQLTDat},
		{DateTime, DateTimeWidth, SQLTTimestamp},
		{Boolean, 2, SQLTUin},
	}
	for _, test := range tests {
		d := Descriptor(test.typ)
		require.Equal(t, test.width, d.Width, "%v", test.typ)
		require.Equal(t, test.width, d.Capacity(), "%v", test.typ)
		require.Equal(t, test.code, d.Code, "%v", test.typ)
		require.NoError(t, d.validate())
	}

	require.Panics(t, func() { Descriptor(Varchar) })
	_, ok := Lookup(SqlType(99))
	require.False(t, ok)

	v := VarcharDescriptor(32)
	require.Equal(t, 32, v.Capacity())
	require.Equal(t, VarcharDescriptor(32), v)
	require.NotEqual(t, VarcharDescriptor(33), v)
	require.NoError(t, v.validate())

	bad := Descriptor(Int32)
	bad.Width = 8
	var protoErr *ProtocolError
	require.ErrorAs(t, bad.validate(), &protoErr)
}

func TestDescriptorFor(t *testing.T) {
	tests := []struct {
		dataType  string
		precision int
		scale     int
		length    int
		want      TypeDescriptor
	}{
		{"NUMBER", 4, 0, 22, Descriptor(Int16)},
		{"NUMBER", 9, 0, 22, Descriptor(Int32)},
		{"NUMBER", 18, 0, 22, Descriptor(Int64)},
		{"NUMBER", 38, 0, 22, Descriptor(Float64)},
		{"NUMBER", 10, 2, 22, Descriptor(Float64)},
		{"NUMBER", 0, -127, 22, Descriptor(Float64)},
		{"NUMBER", 0, 0, 22, Descriptor(Int64)},
		{"INTEGER", 0, 0, 22, Descriptor(Int64)},
		{"BINARY_DOUBLE", 0, 0, 8, Descriptor(Float64)},
		{"varchar2", 0, 0, 32, VarcharDescriptor(32)},
		{"CHAR", 0, 0, 1, VarcharDescriptor(1)},
		{"VARCHAR2", 0, 0, 0, VarcharDescriptor(4000)},
		{"DATE", 0, 0, 7, Descriptor(Date)},
		{"TIMESTAMP(6)", 0, 6, 11, Descriptor(DateTime)},
		{"BOOLEAN", 0, 0, 1, Descriptor(Boolean)},
	}
	for _, test := range tests {
		got, err := DescriptorFor(test.dataType, test.precision, test.scale, test.length)
		require.NoError(t, err, test.dataType)
		require.Equal(t, test.want, got, "%s(%d,%d)", test.dataType, test.precision, test.scale)
	}

	_, err := DescriptorFor("CLOB", 0, 0, 4000)
	var unsupported *UnsupportedType
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "CLOB", unsupported.Name)
}

func TestArenaLayout(t *testing.T) {
	descs := []TypeDescriptor{Descriptor(Int16), VarcharDescriptor(5), Descriptor(Date), Descriptor(Float64)}
	a, err := newArena(descs, []string{"a", "b", "c", "d"}, 3, true)
	require.NoError(t, err)
	require.Len(t, a.Slots(), 4)
	require.Equal(t, 3, a.Batch())

	base := uintptr(unsafe.Pointer(&a.mem[0]))
	for i, s := range a.Slots() {
		require.Equal(t, descs[i], s.Descriptor())
		require.Equal(t, 3, s.Rows())
		require.Len(t, s.data, 3*descs[i].Capacity())
		require.Len(t, s.ind, 3*indicatorSize)
		require.Zero(t, (uintptr(unsafe.Pointer(s.DataAddr()))-base)%cellAlign, "slot %d data", i)
		require.Zero(t, (uintptr(unsafe.Pointer(s.IndicatorAddr()))-base)%cellAlign, "slot %d indicators", i)
		for row := 0; row < 3; row++ {
			require.Equal(t, IndNull, s.Indicator(row))
		}
	}

	// rows of a slot don't overlap
	s := a.Slots()[1]
	require.NoError(t, s.Store(0, "AAAAA"))
	require.NoError(t, s.Store(1, "B"))
	v, err := s.Value(0)
	require.NoError(t, err)
	require.Equal(t, "AAAAA", v)

	_, err = newArena(descs, nil, 0, false)
	require.Error(t, err)
}
