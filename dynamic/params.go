package dynamic

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/erikwco/oracli/v3"
)

// ParsedParameter is a filter value already converted to the type of its
// column. There's one variant per SqlType a filter key can have.
type ParsedParameter interface {
	oracli.ValueProjector
	// Type returns the SqlType the value was parsed for
	Type() oracli.SqlType
}

type (
	Int16Param   int16
	Int32Param   int32
	Int64Param   int64
	UInt16Param  uint16
	UInt32Param  uint32
	UInt64Param  uint64
	VarcharParam string
)

func (Int16Param) Type() oracli.SqlType   { return oracli.Int16 }
func (Int32Param) Type() oracli.SqlType   { return oracli.Int32 }
func (Int64Param) Type() oracli.SqlType   { return oracli.Int64 }
func (UInt16Param) Type() oracli.SqlType  { return oracli.UInt16 }
func (UInt32Param) Type() oracli.SqlType  { return oracli.UInt32 }
func (UInt64Param) Type() oracli.SqlType  { return oracli.UInt64 }
func (VarcharParam) Type() oracli.SqlType { return oracli.Varchar }

func (v Int16Param) ProjectValue(p *oracli.ParamValue) error  { return p.SetInt64(int64(v)) }
func (v Int32Param) ProjectValue(p *oracli.ParamValue) error  { return p.SetInt64(int64(v)) }
func (v Int64Param) ProjectValue(p *oracli.ParamValue) error  { return p.SetInt64(int64(v)) }
func (v UInt16Param) ProjectValue(p *oracli.ParamValue) error { return p.SetUint64(uint64(v)) }
func (v UInt32Param) ProjectValue(p *oracli.ParamValue) error { return p.SetUint64(uint64(v)) }
func (v UInt64Param) ProjectValue(p *oracli.ParamValue) error { return p.SetUint64(uint64(v)) }

// ProjectValue writes the bytes straight into the cell, an empty string is
// NULL like any other Oracle character value
func (v VarcharParam) ProjectValue(p *oracli.ParamValue) error {
	return p.Project(func(data []byte, ind *oracli.Indicator) (int, error) {
		if len(v) == 0 {
			*ind = oracli.IndNull
			return 0, nil
		}
		if len(v) > len(data) {
			return 0, &oracli.TruncationError{Type: oracli.Varchar, Length: len(v), Capacity: len(data)}
		}
		return copy(data, v), nil
	})
}

// errNotFilterType is the reason given for columns that can't be filtered on
var errNotFilterType = errors.New("Not supported type for Primary key")

// Parse converts the text of a filter into the variant of t
func Parse(t oracli.SqlType, value string) (ParsedParameter, error) {
	switch t {
	case oracli.Int16:
		n, err := strconv.ParseInt(value, 10, 16)
		return Int16Param(n), numError(err)
	case oracli.Int32:
		n, err := strconv.ParseInt(value, 10, 32)
		return Int32Param(n), numError(err)
	case oracli.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		return Int64Param(n), numError(err)
	case oracli.UInt16:
		n, err := strconv.ParseUint(value, 10, 16)
		return UInt16Param(n), numError(err)
	case oracli.UInt32:
		n, err := strconv.ParseUint(value, 10, 32)
		return UInt32Param(n), numError(err)
	case oracli.UInt64:
		n, err := strconv.ParseUint(value, 10, 64)
		return UInt64Param(n), numError(err)
	case oracli.Varchar:
		return VarcharParam(value), nil
	}
	return nil, errNotFilterType
}

// numError drops the strconv prefix, the column and value are reported by
// the caller
func numError(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}

// paramsProvider publishes one unnamed member per filter column and expects
// a []ParsedParameter as input
type paramsProvider struct {
	members []oracli.Member
}

func newParamsProvider(descs []oracli.TypeDescriptor) paramsProvider {
	members := make([]oracli.Member, len(descs))
	for i, d := range descs {
		members[i] = oracli.NewMember(d, oracli.Unnamed)
	}
	return paramsProvider{members: members}
}

func (p paramsProvider) Members() []oracli.Member { return p.members }

func (p paramsProvider) ProjectValues(input any, projection *oracli.ParamsProjection) error {
	params, ok := input.([]ParsedParameter)
	if !ok {
		return &oracli.ProtocolError{Reason: fmt.Sprintf("dynamic params of type %T", input)}
	}
	if len(params) != projection.Len() {
		return &oracli.ProtocolError{Reason: fmt.Sprintf("%d values for %d parameters", len(params), projection.Len())}
	}
	for i, param := range params {
		if err := param.ProjectValue(projection.At(i)); err != nil {
			return fmt.Errorf("parameter %d: %w", i+1, err)
		}
	}
	return nil
}
