package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/erikwco/oracli/v3"
	"github.com/rs/zerolog"
)

const columnsSQL = `SELECT COLUMN_NAME, DATA_TYPE, DATA_LENGTH, DATA_PRECISION, DATA_SCALE, NULLABLE
FROM ALL_TAB_COLUMNS
WHERE OWNER = :1 AND TABLE_NAME = :2
ORDER BY COLUMN_ID`

const primaryKeySQL = `SELECT cc.COLUMN_NAME
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
WHERE c.OWNER = :1 AND c.TABLE_NAME = :2 AND c.CONSTRAINT_TYPE = 'P'
ORDER BY cc.POSITION`

// unknownScale stands for a NULL DATA_SCALE, the way a plain NUMBER reports
const unknownScale = -127

// columnRow is a row of columnsSQL
type columnRow struct {
	ColumnName    string `mapstructure:"COLUMN_NAME"`
	DataType      string `mapstructure:"DATA_TYPE"`
	DataLength    int64  `mapstructure:"DATA_LENGTH"`
	DataPrecision *int64 `mapstructure:"DATA_PRECISION"`
	DataScale     *int64 `mapstructure:"DATA_SCALE"`
	Nullable      string `mapstructure:"NULLABLE"`
}

// keyRow is a row of primaryKeySQL
type keyRow struct {
	ColumnName string `mapstructure:"COLUMN_NAME"`
}

var (
	nameParams = oracli.NewValuesProvider(
		oracli.NewMember(oracli.VarcharDescriptor(128), oracli.Unnamed),
		oracli.NewMember(oracli.VarcharDescriptor(128), oracli.Unnamed),
	)

	columnShape = []oracli.Column{
		{Name: "COLUMN_NAME", Descriptor: oracli.VarcharDescriptor(128)},
		{Name: "DATA_TYPE", Descriptor: oracli.VarcharDescriptor(128)},
		{Name: "DATA_LENGTH", Descriptor: oracli.Descriptor(oracli.Int64), Nullable: true},
		{Name: "DATA_PRECISION", Descriptor: oracli.Descriptor(oracli.Int64), Nullable: true},
		{Name: "DATA_SCALE", Descriptor: oracli.Descriptor(oracli.Int64), Nullable: true},
		{Name: "NULLABLE", Descriptor: oracli.VarcharDescriptor(1)},
	}

	keyShape = []oracli.Column{
		{Name: "COLUMN_NAME", Descriptor: oracli.VarcharDescriptor(128)},
	}
)

// Reader loads table descriptions from ALL_TAB_COLUMNS and ALL_CONSTRAINTS
type Reader struct {
	source oracli.ConnectionSource
	batch  int
}

// NewReader creates a Reader fetching batch dictionary rows per round trip
func NewReader(source oracli.ConnectionSource, batch int) *Reader {
	if batch <= 0 {
		batch = 50
	}
	return &Reader{source: source, batch: batch}
}

// Read describes schema.table. Columns of types the statement layer can't
// carry (LOBs, objects, XMLTYPE) are left out.
func (r *Reader) Read(ctx context.Context, schema, table string) (*TableInfo, error) {
	log := zerolog.Ctx(ctx)
	schema, table = strings.ToUpper(schema), strings.ToUpper(table)

	sess, err := r.source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("Can not connect to oracle: %w", err)
	}
	defer r.source.Release(sess)

	rows, err := fetchAll[columnRow](ctx, sess, columnsSQL, columnShape, []any{schema, table}, r.batch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schema, table)
	}

	info := &TableInfo{Schema: schema, Name: table, Columns: make([]ColumnInfo, 0, len(rows))}
	for _, row := range rows {
		precision, scale := 0, unknownScale
		if row.DataPrecision != nil {
			precision = int(*row.DataPrecision)
		}
		if row.DataScale != nil {
			scale = int(*row.DataScale)
		}
		desc, err := oracli.DescriptorFor(row.DataType, precision, scale, int(row.DataLength))
		if err != nil {
			log.Warn().Msgf("column [%v.%v.%v] of type [%v] skipped: %v", schema, table, row.ColumnName, row.DataType, err)
			continue
		}
		info.Columns = append(info.Columns, ColumnInfo{
			Name:       row.ColumnName,
			Type:       desc.Type,
			Descriptor: desc,
			Nullable:   row.Nullable != "N",
			DataType:   row.DataType,
		})
	}

	keys, err := fetchAll[keyRow](ctx, sess, primaryKeySQL, keyShape, []any{schema, table}, r.batch)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		pk := &PrimaryKey{ColumnIndices: make([]int, 0, len(keys))}
		for _, k := range keys {
			idx, _, ok := info.Column(k.ColumnName)
			if !ok {
				log.Warn().Msgf("primary key column [%v] of [%v.%v] has an unsupported type", k.ColumnName, schema, table)
				pk = nil
				break
			}
			pk.ColumnIndices = append(pk.ColumnIndices, idx)
		}
		info.PrimaryKey = pk
	}

	log.Debug().Msgf("+++ Described [%v] with [%d] columns", info.QualifiedName(), len(info.Columns))
	return info, nil
}

// fetchAll runs a dictionary query with a static shape and decodes every row
// into a T
func fetchAll[T any](ctx context.Context, sess oracli.Session, text string, shape []oracli.Column, args []any, batch int) ([]T, error) {
	stmt, err := oracli.Prepare[[]any](ctx, sess, text, nameParams)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = stmt.Close()
	}()

	q, err := oracli.NewQuery[[]any, T](ctx, stmt, oracli.NewStructResults[T](shape), batch)
	if err != nil {
		return nil, err
	}
	return q.FetchList(ctx, args)
}
