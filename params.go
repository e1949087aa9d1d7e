package oracli

import (
	"time"
)

// Identifier names a parameter slot. The zero value is Unnamed, which binds
// purely by position.
type Identifier struct {
	Name string
}

// Unnamed is the positional identifier
var Unnamed = Identifier{}

// Named returns an identifier bound as :name
func Named(name string) Identifier {
	return Identifier{Name: name}
}

// IsNamed reports whether the identifier carries a name
func (i Identifier) IsNamed() bool { return i.Name != "" }

// Member is one parameter slot of a params shape
type Member struct {
	Descriptor TypeDescriptor
	Ident      Identifier
}

// NewMember creates a Member
func NewMember(desc TypeDescriptor, ident Identifier) Member {
	return Member{Descriptor: desc, Ident: ident}
}

// ParamBuffer owns the cells every member of a params shape is written to
// before execute
type ParamBuffer struct {
	*arena
	members []Member
}

// NewParamBuffer allocates the buffer for members, batch rows each
func NewParamBuffer(members []Member, batch int) (*ParamBuffer, error) {
	descs := make([]TypeDescriptor, len(members))
	names := make([]string, len(members))
	for i, m := range members {
		descs[i] = m.Descriptor
		names[i] = m.Ident.Name
	}
	a, err := newArena(descs, names, batch, false)
	if err != nil {
		return nil, err
	}
	return &ParamBuffer{arena: a, members: members}, nil
}

// Members returns the shape the buffer was built for
func (b *ParamBuffer) Members() []Member { return b.members }

// Projection lends out one write handle per member for a row
func (b *ParamBuffer) Projection(row int) *ParamsProjection {
	p := &ParamsProjection{values: make([]ParamValue, len(b.slots))}
	for i, s := range b.slots {
		p.values[i] = ParamValue{slot: s, row: row}
	}
	return p
}

// ParamsProjection is the set of write handles for one row of a ParamBuffer,
// in declaration order
type ParamsProjection struct {
	values []ParamValue
}

// Len returns the number of members
func (p *ParamsProjection) Len() int { return len(p.values) }

// At returns the handle of member i
func (p *ParamsProjection) At(i int) *ParamValue { return &p.values[i] }

// ParamValue is a short lived write handle over a single param cell. It must
// not be kept after the statement that lent it out is closed.
type ParamValue struct {
	slot *Slot
	row  int
}

// Descriptor returns the descriptor of the cell
func (p *ParamValue) Descriptor() TypeDescriptor { return p.slot.desc }

// Capacity returns the number of bytes the cell can hold
func (p *ParamValue) Capacity() int { return p.slot.width }

// Project hands the cell and its indicator to writer. The writer is the only
// code that writes into the cell, it must set the indicator and returns the
// written length, which can't exceed the capacity.
func (p *ParamValue) Project(writer func(data []byte, ind *Indicator) (int, error)) error {
	cell := p.slot.Cell(p.row)
	ind := IndValue
	n, err := writer(cell, &ind)
	if err != nil {
		return err
	}
	if n > len(cell) {
		return &TruncationError{Type: p.slot.desc.Type, Length: n, Capacity: len(cell)}
	}
	if ind == IndNull {
		n = 0
	}
	p.slot.SetIndicator(p.row, ind)
	p.slot.SetLength(p.row, n)
	return nil
}

// Set encodes v with the codec of the cell type. nil, an empty string and an
// empty byte slice are bound as NULL.
func (p *ParamValue) Set(v any) error {
	return p.Project(func(data []byte, ind *Indicator) (int, error) {
		n, null, err := p.slot.codec.encode(v, data)
		if err != nil {
			return 0, err
		}
		if null {
			*ind = IndNull
		}
		return n, nil
	})
}

// SetNull binds NULL
func (p *ParamValue) SetNull() error { return p.Set(nil) }

func (p *ParamValue) SetInt64(v int64) error     { return p.Set(v) }
func (p *ParamValue) SetUint64(v uint64) error   { return p.Set(v) }
func (p *ParamValue) SetFloat64(v float64) error { return p.Set(v) }
func (p *ParamValue) SetString(v string) error   { return p.Set(v) }
func (p *ParamValue) SetBool(v bool) error       { return p.Set(v) }
func (p *ParamValue) SetTime(v time.Time) error  { return p.Set(v) }

// ValueProjector is implemented by values that write themselves into a param
// cell
type ValueProjector interface {
	ProjectValue(p *ParamValue) error
}
