// Package catalog describes tables from the Oracle data dictionary and keeps
// the descriptions cached.
package catalog

import (
	"errors"
	"strings"

	"github.com/erikwco/oracli/v3"
)

var (
	// ErrTableNotFound is returned when the dictionary has no columns for a table
	ErrTableNotFound = errors.New("table not found")
)

// ColumnInfo is one column of a table
type ColumnInfo struct {
	Name       string                `json:"name"`
	Type       oracli.SqlType        `json:"-"`
	Descriptor oracli.TypeDescriptor `json:"-"`
	Nullable   bool                  `json:"nullable"`
	// DataType is the dictionary type name, e.g. NUMBER or VARCHAR2
	DataType string `json:"dataType"`
}

// PrimaryKey lists the positions in TableInfo.Columns of the key columns,
// in key order
type PrimaryKey struct {
	ColumnIndices []int `json:"columnIndices"`
}

// TableInfo describes a table, columns in dictionary order
type TableInfo struct {
	Schema     string       `json:"schema"`
	Name       string       `json:"name"`
	Columns    []ColumnInfo `json:"columns"`
	PrimaryKey *PrimaryKey  `json:"primaryKey,omitempty"`
}

// QualifiedName returns SCHEMA.TABLE
func (t *TableInfo) QualifiedName() string {
	return Key(t.Schema, t.Name)
}

// Column looks a column up by name, the index is -1 when it doesn't exist
func (t *TableInfo) Column(name string) (int, ColumnInfo, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, c, true
		}
	}
	return -1, ColumnInfo{}, false
}

// ColumnNames returns the column names in dictionary order
func (t *TableInfo) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Key builds the cache key of a table, dictionary names are upper case
func Key(schema, table string) string {
	return strings.ToUpper(schema) + "." + strings.ToUpper(table)
}
