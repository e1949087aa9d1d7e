package oracli

import (
	"encoding/binary"
	"fmt"
)

// cellAlign keeps every region of an arena on a native word boundary
const cellAlign = 8

// indicatorSize is the byte size of one indicator and of one return length
const indicatorSize = 2

func align(n int) int {
	return (n + cellAlign - 1) &^ (cellAlign - 1)
}

// Slot is the part of a param or result buffer that belongs to one member or
// column: batch data cells, then batch indicators, then batch return lengths.
// The memory behind a Slot never moves while its buffer is alive, which is
// what lets a native cursor keep the addresses it got at bind/define time.
type Slot struct {
	Name string

	desc   TypeDescriptor
	codec  codec
	width  int
	rows   int
	data   []byte
	ind    []byte
	rlen   []byte
	result bool
}

// Descriptor returns the descriptor the slot was laid out for
func (s *Slot) Descriptor() TypeDescriptor { return s.desc }

// Rows returns the number of rows (batch size) the slot holds
func (s *Slot) Rows() int { return s.rows }

// Width returns the capacity in bytes of one cell
func (s *Slot) Width() int { return s.width }

// Cell returns the data bytes of a row, capped to the cell width
func (s *Slot) Cell(row int) []byte {
	lo := row * s.width
	return s.data[lo : lo+s.width : lo+s.width]
}

// Indicator returns the indicator of a row
func (s *Slot) Indicator(row int) Indicator {
	return Indicator(int16(binary.NativeEndian.Uint16(s.ind[row*indicatorSize:])))
}

// SetIndicator stores the indicator of a row
func (s *Slot) SetIndicator(row int, ind Indicator) {
	binary.NativeEndian.PutUint16(s.ind[row*indicatorSize:], uint16(int16(ind)))
}

// Length returns the number of valid bytes in a row's cell
func (s *Slot) Length(row int) int {
	return int(binary.NativeEndian.Uint16(s.rlen[row*indicatorSize:]))
}

// SetLength stores the number of valid bytes in a row's cell
func (s *Slot) SetLength(row int, n int) {
	binary.NativeEndian.PutUint16(s.rlen[row*indicatorSize:], uint16(n))
}

// DataAddr is the address of the first data byte, the value a native layer
// keeps after bind or define
func (s *Slot) DataAddr() *byte { return &s.data[0] }

// IndicatorAddr is the address of the first indicator
func (s *Slot) IndicatorAddr() *byte { return &s.ind[0] }

// Value decodes a row into its Go representation, nil for NULL
func (s *Slot) Value(row int) (any, error) {
	return s.codec.decode(s.Cell(row), s.Indicator(row), s.Length(row))
}

// Store encodes v into a row and sets its indicator and length. Result slots
// keep the prefix of an over-long character value and record its original
// length in the indicator; param slots refuse it.
func (s *Slot) Store(row int, v any) error {
	cell := s.Cell(row)
	if s.result && s.desc.Type == Varchar {
		if str, ok := v.(string); ok && len(str) > len(cell) {
			copy(cell, str)
			s.SetIndicator(row, Indicator(min(len(str), MaxVarcharLen)))
			s.SetLength(row, len(cell))
			return nil
		}
	}
	n, null, err := s.codec.encode(v, cell)
	if err != nil {
		return err
	}
	if null {
		s.SetIndicator(row, IndNull)
		s.SetLength(row, 0)
		return nil
	}
	s.SetIndicator(row, IndValue)
	s.SetLength(row, n)
	return nil
}

// clear marks every row NULL
func (s *Slot) clear() {
	for i := 0; i < s.rows; i++ {
		s.SetIndicator(i, IndNull)
		s.SetLength(i, 0)
	}
}

// arena is the single allocation behind a ParamBuffer or ResultBuffer
type arena struct {
	mem   []byte
	slots []*Slot
	batch int
}

// newArena lays out one slot per descriptor, sized for batch rows
func newArena(descs []TypeDescriptor, names []string, batch int, result bool) (*arena, error) {
	if batch < 1 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("batch size %d", batch)}
	}
	total := 0
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		total += align(batch*d.Capacity()) + 2*align(batch*indicatorSize)
	}
	a := &arena{mem: make([]byte, total), slots: make([]*Slot, len(descs)), batch: batch}
	off := 0
	take := func(n int) []byte {
		b := a.mem[off : off+n : off+n]
		off += align(n)
		return b
	}
	for i, d := range descs {
		s := &Slot{desc: d, codec: d.codec(), width: d.Capacity(), rows: batch, result: result}
		if names != nil {
			s.Name = names[i]
		}
		s.data = take(batch * s.width)
		s.ind = take(batch * indicatorSize)
		s.rlen = take(batch * indicatorSize)
		s.clear()
		a.slots[i] = s
	}
	return a, nil
}

// Size returns the number of bytes held by the arena
func (a *arena) Size() int { return len(a.mem) }

// Batch returns the number of rows each slot holds
func (a *arena) Batch() int { return a.batch }

// Slots returns the slots in declaration order
func (a *arena) Slots() []*Slot { return a.slots }
