package dynamic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/erikwco/oracli/v3"
)

// DateLayout is how Date cells are rendered
const DateLayout = "2006-01-02"

// resultsProvider renders every row as a JSON object, one key per column in
// catalog order
type resultsProvider struct {
	names []string
	descs []oracli.TypeDescriptor
}

func (r resultsProvider) SQLDescriptors() []oracli.TypeDescriptor { return r.descs }

// GenResult never fails on a cell: a value that can't be decoded is rendered
// as the text of its error
func (r resultsProvider) GenResult(rs oracli.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, name)
		buf.WriteByte(':')
		if err := writeCell(&buf, rs.At(i)); err != nil {
			writeString(&buf, err.Error())
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeCell appends the JSON form of a cell, nothing is written on error
func writeCell(buf *bytes.Buffer, v oracli.ResultValue) error {
	x, err := v.Value()
	if err != nil {
		return err
	}
	switch val := x.(type) {
	case nil:
		buf.WriteString("null")
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%v is not a JSON number", val)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case time.Time:
		if v.Descriptor().Type == oracli.Date {
			writeString(buf, val.Format(DateLayout))
		} else {
			writeString(buf, val.Format(time.RFC3339Nano))
		}
	case string:
		writeString(buf, val)
	default:
		return fmt.Errorf("can not render %T", x)
	}
	return nil
}

// writeString appends s as a JSON string
func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
