package oracli

import (
	"fmt"
	"time"
)

// buildParamsList takes a list of @Param and convert to the members and
// values of a ValuesProvider, the descriptor of every member is inferred
// from the Go type of its value
// Parameters:
// @parameters List of parameters to convert
func buildParamsList(parameters []*Param) ([]Member, []any, error) {
	members := make([]Member, 0, len(parameters))
	values := make([]any, 0, len(parameters))

	for i, p := range parameters {
		desc, err := inferDescriptor(p)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %d [%v]: %w", i+1, p.Name, err)
		}
		members = append(members, NewMember(desc, Unnamed))
		values = append(values, p.Value)
	}

	return members, values, nil
}

// inferDescriptor picks the slot type of a convenience parameter, strings and
// anything unknown travel as varchar of @Param.Size bytes. A varchar wider
// than MaxVarcharLen is refused.
func inferDescriptor(p *Param) (TypeDescriptor, error) {
	switch p.Value.(type) {
	case int16, int8, uint8:
		return Descriptor(Int16), nil
	case int32:
		return Descriptor(Int32), nil
	case int, int64:
		return Descriptor(Int64), nil
	case uint16:
		return Descriptor(UInt16), nil
	case uint32:
		return Descriptor(UInt32), nil
	case uint, uint64:
		return Descriptor(UInt64), nil
	case float32, float64:
		return Descriptor(Float64), nil
	case bool:
		return Descriptor(Boolean), nil
	case time.Time:
		return Descriptor(DateTime), nil
	}
	desc := varcharFor(p)
	if err := desc.validate(); err != nil {
		return TypeDescriptor{}, err
	}
	return desc, nil
}

func varcharFor(p *Param) TypeDescriptor {
	switch v := p.Value.(type) {
	case string:
		return VarcharDescriptor(max(p.Size, len(v)))
	case []byte:
		return VarcharDescriptor(max(p.Size, len(v)))
	}
	return VarcharDescriptor(max(p.Size, 1))
}
