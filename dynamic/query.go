// Package dynamic builds queries over a table known only at runtime: the
// params and results shapes come from catalog metadata and every row is
// rendered as a JSON object.
package dynamic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/rs/zerolog"
)

var (
	// ErrNoPrimaryKey is returned by FromPK for a table without primary key
	ErrNoPrimaryKey = errors.New("Primary key not exists")
	// ErrCompositeKey is returned by FromPK for a multi column primary key
	ErrCompositeKey = errors.New("Primary key must have only ONE column")
)

// Filter is one COLUMN = value condition, the value still in text form
type Filter struct {
	Column string
	Value  string
}

// DynamicQuery selects every column of a table filtered by equality on some
// of them
type DynamicQuery struct {
	table   string
	columns []catalog.ColumnInfo
	filters []catalog.ColumnInfo
	params  []ParsedParameter
	// fetchErr prefixes fetch failures, it names how the row was selected
	fetchErr string
}

// FromPK builds the query fetching the row of table whose single column
// primary key equals value
// Parameters:
// @schema: owner of the table
// @table: catalog description of the table
// @value: primary key in text form
func FromPK(schema string, table *catalog.TableInfo, value string) (*DynamicQuery, error) {
	if table.PrimaryKey == nil || len(table.PrimaryKey.ColumnIndices) == 0 {
		return nil, ErrNoPrimaryKey
	}
	if len(table.PrimaryKey.ColumnIndices) > 1 {
		return nil, ErrCompositeKey
	}
	pk := table.Columns[table.PrimaryKey.ColumnIndices[0]]

	param, err := Parse(pk.Type, value)
	if errors.Is(err, errNotFilterType) {
		return nil, &oracli.UnsupportedType{Name: fmt.Sprintf("%v primary key %s", pk.Type, pk.Name)}
	}
	if err != nil {
		return nil, &oracli.ParseError{Column: pk.Name, Value: value, Reason: err.Error()}
	}

	return &DynamicQuery{
		table:    qualified(schema, table),
		columns:  table.Columns,
		filters:  []catalog.ColumnInfo{pk},
		params:   []ParsedParameter{param},
		fetchErr: "Can not fetch row by pk",
	}, nil
}

// FromParams builds the query fetching the rows of table matching every
// filter, conditions keep the order of filters
// Parameters:
// @schema: owner of the table
// @table: catalog description of the table
// @filters: column name and value in text form
func FromParams(schema string, table *catalog.TableInfo, filters []Filter) (*DynamicQuery, error) {
	q := &DynamicQuery{
		table:    qualified(schema, table),
		columns:  table.Columns,
		filters:  make([]catalog.ColumnInfo, 0, len(filters)),
		params:   make([]ParsedParameter, 0, len(filters)),
		fetchErr: "Can not fetch row by where clause",
	}
	for _, f := range filters {
		_, col, ok := table.Column(f.Column)
		if !ok {
			return nil, &oracli.UnknownColumn{Name: f.Column}
		}
		param, err := Parse(col.Type, f.Value)
		if err != nil {
			return nil, &oracli.ParseError{Column: f.Column, Value: f.Value, Reason: err.Error()}
		}
		q.filters = append(q.filters, col)
		q.params = append(q.params, param)
	}
	return q, nil
}

func qualified(schema string, table *catalog.TableInfo) string {
	return schema + "." + table.Name
}

// Params returns the parsed filter values in bind order
func (q *DynamicQuery) Params() []ParsedParameter { return q.params }

// SQL generates the statement text. Identifiers come from the catalog and
// are not quoted; a query without filters has no WHERE clause.
func (q *DynamicQuery) SQL() string {
	names := make([]string, len(q.columns))
	for i, c := range q.columns {
		names[i] = c.Name
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(names, ","))
	sb.WriteString(" FROM ")
	sb.WriteString(q.table)
	for i, f := range q.filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s = :%d", f.Name, i+1)
	}
	return sb.String()
}

// FetchOne returns the first matching row as a JSON object, {} when there's
// none
func (q *DynamicQuery) FetchOne(ctx context.Context, source oracli.ConnectionSource) ([]byte, error) {
	sess, err := source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("Can not connect to oracle: %w", err)
	}
	defer source.Release(sess)

	query, err := q.prepare(ctx, sess, 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = query.Close()
	}()

	row, ok, err := query.FetchOne(ctx, q.params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.fetchErr, err)
	}
	if !ok {
		return []byte("{}"), nil
	}
	return row, nil
}

// FetchMany returns every matching row in a JSON array, fetching batch rows
// per round trip
func (q *DynamicQuery) FetchMany(ctx context.Context, source oracli.ConnectionSource, batch int) ([]byte, error) {
	sess, err := source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("Can not connect to oracle: %w", err)
	}
	defer source.Release(sess)

	query, err := q.prepare(ctx, sess, batch)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = query.Close()
	}()

	rows, err := query.FetchList(ctx, q.params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.fetchErr, err)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(rows, []byte{','}))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (q *DynamicQuery) prepare(ctx context.Context, sess oracli.Session, batch int) (*oracli.Query[any, []byte], error) {
	text := q.SQL()
	zerolog.Ctx(ctx).Debug().Msgf("+++ Dynamic query [%v] with [%d] filters", text, len(q.params))

	paramDescs := make([]oracli.TypeDescriptor, len(q.filters))
	for i, f := range q.filters {
		paramDescs[i] = f.Descriptor
	}
	results := resultsProvider{
		names: make([]string, len(q.columns)),
		descs: make([]oracli.TypeDescriptor, len(q.columns)),
	}
	for i, c := range q.columns {
		results.names[i] = c.Name
		results.descs[i] = c.Descriptor
	}

	stmt, err := oracli.PrepareDynamic(ctx, sess, text, newParamsProvider(paramDescs))
	if err != nil {
		return nil, fmt.Errorf("Can not prepare statement: %w", err)
	}
	query, err := oracli.NewQuery[any, []byte](ctx, stmt, results, max(batch, 1))
	if err != nil {
		_ = stmt.Close()
		return nil, fmt.Errorf("Can not create query from statement: %w", err)
	}
	return query, nil
}
