package oracli

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// NoParams is the params shape of a statement without parameters
type NoParams struct{}

func (NoParams) Members() []Member { return nil }

func (NoParams) ProjectValues(struct{}, *ParamsProjection) error { return nil }

// ValuesProvider is a static params shape fed with a []any, one value per
// member, encoded with ParamValue.Set
type ValuesProvider struct {
	members []Member
}

// NewValuesProvider creates a ValuesProvider for members
func NewValuesProvider(members ...Member) ValuesProvider {
	return ValuesProvider{members: members}
}

func (p ValuesProvider) Members() []Member { return p.members }

func (p ValuesProvider) ProjectValues(input []any, projection *ParamsProjection) error {
	if len(input) != projection.Len() {
		return &ProtocolError{Reason: fmt.Sprintf("%d values for %d parameters", len(input), projection.Len())}
	}
	for i, v := range input {
		if err := projection.At(i).Set(v); err != nil {
			return fmt.Errorf("parameter %d: %w", i+1, err)
		}
	}
	return nil
}

// ProjectorsProvider is a params shape whose values project themselves
type ProjectorsProvider struct {
	members []Member
}

// NewProjectorsProvider creates a ProjectorsProvider for members
func NewProjectorsProvider(members ...Member) ProjectorsProvider {
	return ProjectorsProvider{members: members}
}

func (p ProjectorsProvider) Members() []Member { return p.members }

func (p ProjectorsProvider) ProjectValues(input []ValueProjector, projection *ParamsProjection) error {
	if len(input) != projection.Len() {
		return &ProtocolError{Reason: fmt.Sprintf("%d values for %d parameters", len(input), projection.Len())}
	}
	for i, v := range input {
		if err := v.ProjectValue(projection.At(i)); err != nil {
			return fmt.Errorf("parameter %d: %w", i+1, err)
		}
	}
	return nil
}

// RecordResults is a results shape that turns every row into a Record
type RecordResults struct {
	columns []Column
}

// NewRecordResults creates a RecordResults over columns, typically the output
// of Statement.Describe
func NewRecordResults(columns []Column) RecordResults {
	return RecordResults{columns: columns}
}

func (r RecordResults) SQLDescriptors() []TypeDescriptor {
	out := make([]TypeDescriptor, len(r.columns))
	for i, c := range r.columns {
		out[i] = c.Descriptor
	}
	return out
}

func (r RecordResults) GenResult(rs ResultSet) (Record, error) {
	rec := make(Record, len(r.columns))
	for i, c := range r.columns {
		v, err := rs.At(i).Value()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		rec[c.Name] = v
	}
	return rec, nil
}

// StructResults decodes every row into a T with mapstructure, matching column
// names against field names or `mapstructure` tags
type StructResults[T any] struct {
	RecordResults
}

// NewStructResults creates a StructResults over columns
func NewStructResults[T any](columns []Column) StructResults[T] {
	return StructResults[T]{RecordResults: NewRecordResults(columns)}
}

func (r StructResults[T]) GenResult(rs ResultSet) (T, error) {
	var out T
	rec, err := r.RecordResults.GenResult(rs)
	if err != nil {
		return out, err
	}
	if err := mapstructure.Decode(rec, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Parser generic function to convert Result object to structure
// Parameters:
// @source: Result object that contains the data
func Parser[T any](source Result) (T, error) {
	var empty T
	var data T
	if source.Container == nil {
		return empty, source.Error
	}
	err := mapstructure.Decode(source.Data, &data)
	if err != nil {
		return empty, err
	}
	return data, nil
}
