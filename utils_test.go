package oracli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInferDescriptor(t *testing.T) {
	tests := []struct {
		value any
		size  int
		want  TypeDescriptor
	}{
		{value: int8(1), want: Descriptor(Int16)},
		{value: int32(1), want: Descriptor(Int32)},
		{value: 1, want: Descriptor(Int64)},
		{value: uint16(1), want: Descriptor(UInt16)},
		{value: uint32(1), want: Descriptor(UInt32)},
		{value: uint(1), want: Descriptor(UInt64)},
		{value: 1.5, want: Descriptor(Float64)},
		{value: true, want: Descriptor(Boolean)},
		{value: time.Now(), want: Descriptor(DateTime)},
		{value: "ADA", size: 100, want: VarcharDescriptor(100)},
		{value: "LOVELACE", size: 4, want: VarcharDescriptor(8)},
		{value: []byte("AB"), want: VarcharDescriptor(2)},
		{value: nil, want: VarcharDescriptor(1)},
	}
	for i, test := range tests {
		got, err := inferDescriptor(&Param{Value: test.value, Size: test.size})
		require.NoError(t, err, "case %d", i)
		require.Equal(t, test.want, got, "case %d", i)
	}
}

func TestBuildParamsList(t *testing.T) {
	members, values, err := buildParamsList([]*Param{
		{Name: "id", Value: 7},
		{Name: "name", Value: "ADA", Size: 10},
	})
	require.NoError(t, err)
	require.Equal(t, []Member{
		NewMember(Descriptor(Int64), Unnamed),
		NewMember(VarcharDescriptor(10), Unnamed),
	}, members)
	require.Equal(t, []any{7, "ADA"}, values)

	members, values, err = buildParamsList(nil)
	require.NoError(t, err)
	require.Empty(t, members)
	require.Empty(t, values)
}

func TestBuildParamsListOversized(t *testing.T) {
	members, values, err := buildParamsList([]*Param{
		{Name: "id", Value: 7},
		{Name: "notes", Value: strings.Repeat("x", MaxVarcharLen+1)},
	})
	var truncErr *TruncationError
	require.ErrorAs(t, err, &truncErr)
	require.Equal(t, MaxVarcharLen+1, truncErr.Length)
	require.Contains(t, err.Error(), "parameter 2 [notes]")
	require.Nil(t, members)
	require.Nil(t, values)
}
