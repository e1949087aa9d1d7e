package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/erikwco/oracli/v3/config"
	"github.com/erikwco/oracli/v3/oratest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeCatalog map[string]*catalog.TableInfo

func (f fakeCatalog) Get(_ context.Context, schema, table string) (*catalog.TableInfo, error) {
	info, ok := f[catalog.Key(schema, table)]
	if !ok {
		return nil, catalog.ErrTableNotFound
	}
	return info, nil
}

func (f fakeCatalog) Tables() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func column(name string, desc oracli.TypeDescriptor) catalog.ColumnInfo {
	return catalog.ColumnInfo{Name: name, Type: desc.Type, Descriptor: desc, Nullable: true}
}

func testCatalog() fakeCatalog {
	emp := &catalog.TableInfo{
		Schema: "HR",
		Name:   "EMP",
		Columns: []catalog.ColumnInfo{
			column("ID", oracli.Descriptor(oracli.Int32)),
			column("NAME", oracli.VarcharDescriptor(32)),
			column("HIRED", oracli.Descriptor(oracli.Date)),
		},
		PrimaryKey: &catalog.PrimaryKey{ColumnIndices: []int{0}},
	}
	logs := &catalog.TableInfo{
		Schema:  "HR",
		Name:    "LOGS",
		Columns: []catalog.ColumnInfo{column("MSG", oracli.VarcharDescriptor(100))},
	}
	return fakeCatalog{"HR.EMP": emp, "HR.LOGS": logs}
}

func empColumns() []oracli.Column {
	cols := testCatalog()["HR.EMP"].Columns
	out := make([]oracli.Column, len(cols))
	for i, c := range cols {
		out[i] = oracli.Column{Name: c.Name, Descriptor: c.Descriptor, Nullable: true}
	}
	return out
}

func newTestServer(t *testing.T, sess *oratest.Session, health func(context.Context) error) *Server {
	cfg := config.NewConfig()
	log := zerolog.Nop()
	return NewServer(*cfg, Deps{
		Source:  oratest.NewSource(sess),
		Catalog: testCatalog(),
		Health:  health,
	}, &log)
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestFetchByPK(t *testing.T) {
	sess := oratest.NewSession().
		On("SELECT ID,NAME,HIRED FROM HR.EMP WHERE ID = :1", oratest.Response{
			Columns: empColumns(),
			Rows:    [][]any{{int32(7), "ADA", time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)}},
		})
	srv := newTestServer(t, sess, nil)

	rec := get(t, srv, "/api/v1/tables/HR/EMP/7")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"ID":7,"NAME":"ADA","HIRED":"1815-12-10"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestFetchByParams(t *testing.T) {
	sess := oratest.NewSession().
		On("SELECT ID,NAME,HIRED FROM HR.EMP WHERE NAME = :1 AND ID = :2", oratest.Response{
			Columns: empColumns(),
			Rows:    [][]any{{int32(7), "ADA LOVELACE", nil}},
		})
	srv := newTestServer(t, sess, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/HR/EMP?NAME=ADA%20LOVELACE&ID=7", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `[{"ID":7,"NAME":"ADA LOVELACE","HIRED":null}]`, rec.Body.String())
	require.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	require.Equal(t, []any{"ADA LOVELACE", int32(7)}, sess.Executed()[0].Args)
}

func TestErrorStatus(t *testing.T) {
	sess := oratest.NewSession().
		On("SELECT ID,NAME,HIRED FROM HR.EMP WHERE ID = :1", oratest.Response{
			Columns: empColumns(),
			Err:     &oracli.NativeError{Code: 1722, Text: "invalid number"},
		})
	srv := newTestServer(t, sess, nil)

	tests := []struct {
		target  string
		status  int
		message string
	}{
		{target: "/api/v1/tables/HR/NOPE/1", status: http.StatusNotFound, message: "table not found"},
		{target: "/api/v1/tables/HR/EMP/abc", status: http.StatusBadRequest, message: "Can not parse parameter value abc for column ID: invalid syntax"},
		{target: "/api/v1/tables/HR/LOGS/1", status: http.StatusBadRequest, message: "Primary key not exists"},
		{target: "/api/v1/tables/HR/EMP?FOO=1", status: http.StatusBadRequest, message: "Not found column FOO"},
		{target: "/api/v1/tables/HR/EMP?ID=%zz", status: http.StatusBadRequest},
	}
	for i, test := range tests {
		rec := get(t, srv, test.target)
		require.Equal(t, test.status, rec.Code, "case %d", i)
		var resp CommonJsonResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "case %d", i)
		require.Equal(t, test.status, resp.Code, "case %d", i)
		if test.message != "" {
			require.Equal(t, test.message, resp.Message, "case %d", i)
		}
	}

	rec := get(t, srv, "/api/v1/tables/HR/EMP/7")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var sqlErr map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sqlErr))
	require.EqualValues(t, 1722, sqlErr["code"])
	require.Equal(t, "invalid number", sqlErr["message"])
	require.Equal(t, "Executing", sqlErr["state"])
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusGatewayTimeout, statusOf(context.DeadlineExceeded))
	require.Equal(t, http.StatusServiceUnavailable, statusOf(oracli.ErrPoolClosed))
	require.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}

func TestMeta(t *testing.T) {
	srv := newTestServer(t, oratest.NewSession(), nil)

	rec := get(t, srv, "/api/v1/meta")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"tables":["HR.EMP","HR.LOGS"]}`, rec.Body.String())

	rec = get(t, srv, "/api/v1/meta/hr/emp")
	require.Equal(t, http.StatusOK, rec.Code)
	var info catalog.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "EMP", info.Name)
	require.Equal(t, []string{"ID", "NAME", "HIRED"}, info.ColumnNames())
	require.Equal(t, []int{0}, info.PrimaryKey.ColumnIndices)

	rec = get(t, srv, "/api/v1/meta/HR/NOPE")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, oratest.NewSession(), nil)
	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"code":200,"message":"ok"}`, rec.Body.String())

	srv = newTestServer(t, oratest.NewSession(), func(context.Context) error {
		return errors.New("ORA-12541: TNS:no listener")
	})
	rec = get(t, srv, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// closed servers refuse requests
	srv = newTestServer(t, oratest.NewSession(), nil)
	require.NoError(t, srv.Close())
	rec = get(t, srv, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters("B=2&A=x%2By&C=&&D")
	require.NoError(t, err)
	require.Equal(t, []string{"B", "A", "C", "D"}, []string{filters[0].Column, filters[1].Column, filters[2].Column, filters[3].Column})
	require.Equal(t, "x+y", filters[1].Value)
	require.Equal(t, "", filters[2].Value)
}

func TestStartClose(t *testing.T) {
	cfg := config.NewConfig()
	cfg.API.Addr = "127.0.0.1:0"
	log := zerolog.Nop()
	srv := NewServer(*cfg, Deps{Source: oratest.NewSource(oratest.NewSession()), Catalog: testCatalog()}, &log)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, srv.Close())
}

func TestQueryTimeout(t *testing.T) {
	sess := oratest.NewSession().
		On("SELECT ID,NAME,HIRED FROM HR.EMP WHERE ID = :1", oratest.Response{
			Columns: empColumns(),
			Block:   make(chan struct{}),
		})
	cfg := config.NewConfig()
	cfg.Query.Timeout = config.Duration{Duration: 20 * time.Millisecond}
	log := zerolog.Nop()
	srv := NewServer(*cfg, Deps{Source: oratest.NewSource(sess), Catalog: testCatalog()}, &log)

	rec := get(t, srv, "/api/v1/tables/HR/EMP/7")
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
