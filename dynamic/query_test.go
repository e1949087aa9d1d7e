package dynamic

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/erikwco/oracli/v3/oratest"
	"github.com/stretchr/testify/require"
)

const (
	empByPK   = "SELECT ID,NAME,HIRED FROM HR.EMP WHERE ID = :1"
	empByName = "SELECT ID,NAME,HIRED FROM HR.EMP WHERE NAME = :1"
)

func column(name string, desc oracli.TypeDescriptor) catalog.ColumnInfo {
	return catalog.ColumnInfo{Name: name, Type: desc.Type, Descriptor: desc, Nullable: true}
}

func empTable() *catalog.TableInfo {
	return &catalog.TableInfo{
		Schema: "HR",
		Name:   "EMP",
		Columns: []catalog.ColumnInfo{
			column("ID", oracli.Descriptor(oracli.Int32)),
			column("NAME", oracli.VarcharDescriptor(32)),
			column("HIRED", oracli.Descriptor(oracli.Date)),
		},
		PrimaryKey: &catalog.PrimaryKey{ColumnIndices: []int{0}},
	}
}

func empColumns() []oracli.Column {
	cols := empTable().Columns
	out := make([]oracli.Column, len(cols))
	for i, c := range cols {
		out[i] = oracli.Column{Name: c.Name, Descriptor: c.Descriptor, Nullable: c.Nullable}
	}
	return out
}

var ada = []any{int32(7), "ADA", time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)}

func TestFetchByPK(t *testing.T) {
	sess := oratest.NewSession().On(empByPK, oratest.Response{Columns: empColumns(), Rows: [][]any{ada}})
	src := oratest.NewSource(sess)

	q, err := FromPK("HR", empTable(), "7")
	require.NoError(t, err)
	require.Equal(t, empByPK, q.SQL())
	require.Equal(t, []ParsedParameter{Int32Param(7)}, q.Params())

	out, err := q.FetchOne(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, `{"ID":7,"NAME":"ADA","HIRED":"1815-12-10"}`, string(out))
	require.Equal(t, []any{int32(7)}, sess.Executed()[0].Args)
	require.EqualValues(t, 1, src.Released.Load())
	require.True(t, sess.Cursors()[0].Closed())
}

func TestFetchByPKNoRow(t *testing.T) {
	sess := oratest.NewSession().On(empByPK, oratest.Response{Columns: empColumns()})

	q, err := FromPK("HR", empTable(), "8")
	require.NoError(t, err)
	out, err := q.FetchOne(context.Background(), oratest.NewSource(sess))
	require.NoError(t, err)
	require.Equal(t, "{}", string(out))
}

func TestFetchByParams(t *testing.T) {
	sess := oratest.NewSession().On(empByName, oratest.Response{Columns: empColumns(), Rows: [][]any{
		ada,
		{int32(9), "ADA", nil},
		{int32(10), "ADA", time.Date(1843, 1, 1, 0, 0, 0, 0, time.UTC)},
	}})

	q, err := FromParams("HR", empTable(), []Filter{{Column: "NAME", Value: "ADA"}})
	require.NoError(t, err)
	out, err := q.FetchMany(context.Background(), oratest.NewSource(sess), 2)
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"ID":7,"NAME":"ADA","HIRED":"1815-12-10"},
		{"ID":9,"NAME":"ADA","HIRED":null},
		{"ID":10,"NAME":"ADA","HIRED":"1843-01-01"}
	]`, string(out))
	require.Contains(t, string(out), `,{"ID":9,"NAME":"ADA","HIRED":null},`)
	require.EqualValues(t, 2, sess.Calls.Fetches.Load())
}

func TestFetchByParamsEmpty(t *testing.T) {
	sess := oratest.NewSession().On(empByName, oratest.Response{Columns: empColumns()})

	q, err := FromParams("HR", empTable(), []Filter{{Column: "NAME", Value: "NOBODY"}})
	require.NoError(t, err)
	out, err := q.FetchMany(context.Background(), oratest.NewSource(sess), 50)
	require.NoError(t, err)
	require.Equal(t, "[]", string(out))
}

func TestSQL(t *testing.T) {
	tests := []struct {
		filters []Filter
		sql     string
	}{
		{
			sql: "SELECT ID,NAME,HIRED FROM HR.EMP",
		},
		{
			filters: []Filter{{Column: "NAME", Value: "ADA"}, {Column: "ID", Value: "7"}},
			sql:     "SELECT ID,NAME,HIRED FROM HR.EMP WHERE NAME = :1 AND ID = :2",
		},
		{
			filters: []Filter{{Column: "ID", Value: "7"}, {Column: "NAME", Value: "ADA"}},
			sql:     "SELECT ID,NAME,HIRED FROM HR.EMP WHERE ID = :1 AND NAME = :2",
		},
	}
	for i, test := range tests {
		q, err := FromParams("HR", empTable(), test.filters)
		require.NoError(t, err, "case %d", i)
		require.Equal(t, test.sql, q.SQL(), "case %d", i)
		require.Len(t, q.Params(), len(test.filters), "case %d", i)
	}
}

func TestFromParamsErrors(t *testing.T) {
	_, err := FromParams("HR", empTable(), []Filter{{Column: "FOO", Value: "1"}})
	var unknown *oracli.UnknownColumn
	require.ErrorAs(t, err, &unknown)
	require.EqualError(t, err, "Not found column FOO")

	// names are matched as given
	_, err = FromParams("HR", empTable(), []Filter{{Column: "name", Value: "ADA"}})
	require.ErrorAs(t, err, &unknown)

	_, err = FromParams("HR", empTable(), []Filter{{Column: "ID", Value: "abc"}})
	var parseErr *oracli.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "ID", parseErr.Column)
	require.Equal(t, "abc", parseErr.Value)

	_, err = FromParams("HR", empTable(), []Filter{{Column: "HIRED", Value: "1815-12-10"}})
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, errNotFilterType.Error(), parseErr.Reason)
}

func TestFromPKErrors(t *testing.T) {
	table := empTable()
	_, err := FromPK("HR", table, "abc")
	var parseErr *oracli.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "invalid syntax", parseErr.Reason)

	_, err = FromPK("HR", table, "99999999999")
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "value out of range", parseErr.Reason)

	table.PrimaryKey = nil
	_, err = FromPK("HR", table, "7")
	require.ErrorIs(t, err, ErrNoPrimaryKey)

	table.PrimaryKey = &catalog.PrimaryKey{}
	_, err = FromPK("HR", table, "7")
	require.ErrorIs(t, err, ErrNoPrimaryKey)

	table.PrimaryKey = &catalog.PrimaryKey{ColumnIndices: []int{0, 1}}
	_, err = FromPK("HR", table, "7")
	require.ErrorIs(t, err, ErrCompositeKey)

	table.PrimaryKey = &catalog.PrimaryKey{ColumnIndices: []int{2}}
	_, err = FromPK("HR", table, "1815-12-10")
	var unsupported *oracli.UnsupportedType
	require.ErrorAs(t, err, &unsupported)
}

func TestFetchErrors(t *testing.T) {
	q, err := FromPK("HR", empTable(), "7")
	require.NoError(t, err)

	src := oratest.NewSource(oratest.NewSession())
	src.AcquireErr = errors.New("pool exhausted")
	_, err = q.FetchOne(context.Background(), src)
	require.ErrorContains(t, err, "Can not connect to oracle")

	// no handler: the table doesn't exist
	_, err = q.FetchOne(context.Background(), oratest.NewSource(oratest.NewSession()))
	var sqlErr *oracli.SqlError
	require.ErrorAs(t, err, &sqlErr)
	require.Equal(t, 942, sqlErr.Code)
	require.ErrorContains(t, err, "Can not create query from statement")

	sess := oratest.NewSession().On(empByPK, oratest.Response{
		Columns: empColumns(),
		Err:     &oracli.NativeError{Code: 1722, Text: "invalid number"},
	})
	_, err = q.FetchOne(context.Background(), oratest.NewSource(sess))
	require.ErrorContains(t, err, "Can not fetch row by pk")
	require.ErrorAs(t, err, &sqlErr)
	require.Equal(t, 1722, sqlErr.Code)

	q, err = FromParams("HR", empTable(), nil)
	require.NoError(t, err)
	sess = oratest.NewSession().On("SELECT ID,NAME,HIRED FROM HR.EMP", oratest.Response{
		Columns:    empColumns(),
		Rows:       [][]any{ada, ada},
		FetchErr:   &oracli.NativeError{Code: 3113, Text: "end-of-file on communication channel"},
		FetchErrAt: 1,
	})
	_, err = q.FetchMany(context.Background(), oratest.NewSource(sess), 1)
	require.ErrorContains(t, err, "Can not fetch row by where clause")

	// the message follows how the query was built, not the fetch used
	q, err = FromParams("HR", empTable(), []Filter{{Column: "NAME", Value: "ADA"}})
	require.NoError(t, err)
	sess = oratest.NewSession().On(empByName, oratest.Response{
		Columns: empColumns(),
		Err:     &oracli.NativeError{Code: 1722, Text: "invalid number"},
	})
	_, err = q.FetchOne(context.Background(), oratest.NewSource(sess))
	require.ErrorContains(t, err, "Can not fetch row by where clause")
	require.NotContains(t, err.Error(), "by pk")

	q, err = FromPK("HR", empTable(), "7")
	require.NoError(t, err)
	sess = oratest.NewSession().On(empByPK, oratest.Response{
		Columns: empColumns(),
		Err:     &oracli.NativeError{Code: 1722, Text: "invalid number"},
	})
	_, err = q.FetchMany(context.Background(), oratest.NewSource(sess), 1)
	require.ErrorContains(t, err, "Can not fetch row by pk")
}

func TestParse(t *testing.T) {
	tests := []struct {
		t      oracli.SqlType
		value  string
		want   ParsedParameter
		reason string
	}{
		{t: oracli.Int16, value: "-12", want: Int16Param(-12)},
		{t: oracli.Int16, value: "40000", reason: "value out of range"},
		{t: oracli.Int32, value: "7", want: Int32Param(7)},
		{t: oracli.Int64, value: "9223372036854775807", want: Int64Param(math.MaxInt64)},
		{t: oracli.UInt16, value: "-1", reason: "invalid syntax"},
		{t: oracli.UInt32, value: "4294967295", want: UInt32Param(math.MaxUint32)},
		{t: oracli.UInt64, value: "18446744073709551615", want: UInt64Param(math.MaxUint64)},
		{t: oracli.Varchar, value: "ADA", want: VarcharParam("ADA")},
		{t: oracli.Float64, value: "1.5", reason: errNotFilterType.Error()},
		{t: oracli.Boolean, value: "1", reason: errNotFilterType.Error()},
	}
	for i, test := range tests {
		got, err := Parse(test.t, test.value)
		if test.reason != "" {
			require.EqualError(t, err, test.reason, "case %d", i)
			continue
		}
		require.NoError(t, err, "case %d", i)
		require.Equal(t, test.want, got, "case %d", i)
		require.Equal(t, test.t, got.Type(), "case %d", i)
	}
}

func TestVarcharParam(t *testing.T) {
	buf, err := oracli.NewParamBuffer([]oracli.Member{oracli.NewMember(oracli.VarcharDescriptor(3), oracli.Unnamed)}, 1)
	require.NoError(t, err)
	slot := buf.Slots()[0]

	require.NoError(t, VarcharParam("ADA").ProjectValue(buf.Projection(0).At(0)))
	v, err := slot.Value(0)
	require.NoError(t, err)
	require.Equal(t, "ADA", v)

	require.NoError(t, VarcharParam("").ProjectValue(buf.Projection(0).At(0)))
	v, err = slot.Value(0)
	require.NoError(t, err)
	require.Nil(t, v)

	err = VarcharParam("ADAM").ProjectValue(buf.Projection(0).At(0))
	var truncErr *oracli.TruncationError
	require.ErrorAs(t, err, &truncErr)
}
