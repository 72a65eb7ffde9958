package row

import (
	"fmt"
	"sort"
)

// Values is a decoded row: column name to Go value. A nil entry or a
// missing key both mean SQL NULL.
type Values map[string]interface{}

// Codec encodes and decodes rows for one table's column layout.
//
// Layout (spec.md 4.5), in write order:
//  1. column count (RowCountSize bytes, little-endian) -- the *total*
//     column count this row was written against.
//  2. fixed-column bytes at each fixed column's declared offset.
//  3. variable-column bytes, concatenated in declaration order.
//  4. a jump table, one 2-byte little-endian start offset, relative to
//     the start of the variable-column area, per variable column plus one trailing entry marking the end of the
//     variable area, written in reverse order (last entry first).
//  5. a null/boolean mask, one bit per column (both fixed and variable),
//     set to 1 when the column is non-null (or, for booleans, true).
//  6. a trailer repeating RowCountSize bytes: the number of variable
//     columns actually present, used on read instead of trusting the
//     schema (spec.md 4.5: columns added after the row was written must
//     decode as null, not desync the jump table).
type Codec struct {
	Columns      []Column
	RowCountSize int // 1 (Jet3) or 2 (Jet4+), from the format descriptor
	LongValueIO  IO
}

func (c *Codec) fixedColumns() []Column {
	var out []Column
	for _, col := range c.Columns {
		if col.IsFixed() {
			out = append(out, col)
		}
	}
	return out
}

func (c *Codec) variableColumns() []Column {
	var out []Column
	for _, col := range c.Columns {
		if !col.IsFixed() {
			out = append(out, col)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariableIndex < out[j].VariableIndex })
	return out
}

func maskBytes(n int) int { return (n + 7) / 8 }

func setMaskBit(mask []byte, i int) { mask[i/8] |= 1 << uint(i%8) }
func maskBit(mask []byte, i int) bool {
	if i/8 >= len(mask) {
		return false
	}
	return mask[i/8]&(1<<uint(i%8)) != 0
}

func putCount(b []byte, size int, v int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getCount(b []byte, size int) int {
	v := 0
	for i := 0; i < size; i++ {
		v |= int(b[i]) << (8 * i)
	}
	return v
}

// Encode serializes values into a row byte slice.
func (c *Codec) Encode(values Values) ([]byte, error) {
	fixed := c.fixedColumns()
	variable := c.variableColumns()

	fixedArea := make([]byte, 0, 64)
	for _, col := range fixed {
		w, err := col.FixedWidth()
		if err != nil {
			return nil, err
		}
		if w == 0 {
			continue // boolean: lives only in the mask
		}
		start := col.FixedOffset
		if start+w > len(fixedArea) {
			grown := make([]byte, start+w)
			copy(grown, fixedArea)
			fixedArea = grown
		}
		v, present := values[col.Name]
		if !present || v == nil {
			continue // zero bytes; null bit communicates absence
		}
		encoded, err := encodeFixed(col, v)
		if err != nil {
			return nil, err
		}
		copy(fixedArea[start:start+w], encoded)
	}

	var varArea []byte
	varStarts := make([]int, len(variable)+1)
	presentVar := make([]bool, len(variable))

	for i, col := range variable {
		varStarts[i] = len(varArea)
		v, present := values[col.Name]
		if !present || v == nil {
			continue
		}
		presentVar[i] = true

		var encoded []byte
		var err error
		switch {
		case col.IsLongValue():
			b, ok := asBytes(v)
			if !ok {
				return nil, typeErr(col, v)
			}
			encoded, err = EncodeLongValue(c.LongValueIO, b)
		case col.Type == TypeText:
			encoded, err = encodeText(col, v)
		default:
			b, ok := asBytes(v)
			if !ok {
				return nil, typeErr(col, v)
			}
			encoded = b
		}
		if err != nil {
			return nil, err
		}
		varArea = append(varArea, encoded...)
	}
	varStarts[len(variable)] = len(varArea)

	rowCountSize := c.RowCountSize
	if rowCountSize == 0 {
		rowCountSize = 2
	}

	header := make([]byte, rowCountSize)
	putCount(header, rowCountSize, len(c.Columns))

	jumpTable := make([]byte, 2*(len(variable)+1))
	for i := len(variable); i >= 0; i-- {
		// written in reverse order: last entry first
		pos := (len(variable) - i) * 2
		jumpTable[pos] = byte(varStarts[i])
		jumpTable[pos+1] = byte(varStarts[i] >> 8)
	}

	mask := make([]byte, maskBytes(len(c.Columns)))
	for _, col := range fixed {
		v, present := values[col.Name]
		if !present || v == nil {
			continue
		}
		if col.Type == TypeBoolean {
			if b, ok := v.(bool); ok && b {
				setMaskBit(mask, col.Number)
			}
			continue
		}
		setMaskBit(mask, col.Number)
	}
	for i, col := range variable {
		if presentVar[i] {
			setMaskBit(mask, col.Number)
		}
	}

	trailer := make([]byte, rowCountSize)
	putCount(trailer, rowCountSize, len(variable))

	out := make([]byte, 0, len(header)+len(fixedArea)+len(varArea)+len(jumpTable)+len(mask)+len(trailer))
	out = append(out, header...)
	out = append(out, fixedArea...)
	out = append(out, varArea...)
	out = append(out, jumpTable...)
	out = append(out, mask...)
	out = append(out, trailer...)
	return out, nil
}

// Decode reverses Encode. A column present in c.Columns but not covered by
// the row's stored variable-column count (because the column was added to
// the schema after this row was written) decodes as null, per spec.md 4.5.
func (c *Codec) Decode(data []byte) (Values, error) {
	rowCountSize := c.RowCountSize
	if rowCountSize == 0 {
		rowCountSize = 2
	}
	if len(data) < 2*rowCountSize {
		return nil, fmt.Errorf("row: buffer too small for header/trailer")
	}

	totalCols := getCount(data, rowCountSize)
	storedVarCount := getCount(data[len(data)-rowCountSize:], rowCountSize)

	jumpTableLen := 2 * (storedVarCount + 1)
	maskLen := maskBytes(totalCols)
	if len(data) < rowCountSize+jumpTableLen+maskLen+rowCountSize {
		return nil, fmt.Errorf("row: buffer too small for jump table")
	}
	maskStart := len(data) - rowCountSize - maskLen
	jumpStart := maskStart - jumpTableLen
	jumpTable := data[jumpStart : jumpStart+jumpTableLen]

	varStarts := make([]int, storedVarCount+1)
	for i := 0; i <= storedVarCount; i++ {
		pos := (storedVarCount - i) * 2
		varStarts[i] = int(jumpTable[pos]) | int(jumpTable[pos+1])<<8
	}

	mask := data[maskStart : maskStart+maskLen]

	values := make(Values, len(c.Columns))
	fixed := c.fixedColumns()
	variable := c.variableColumns()

	for _, col := range fixed {
		if col.Type == TypeBoolean {
			values[col.Name] = maskBit(mask, col.Number)
			continue
		}
		if !maskBit(mask, col.Number) {
			values[col.Name] = nil
			continue
		}
		w, err := col.FixedWidth()
		if err != nil {
			return nil, err
		}
		start := rowCountSize + col.FixedOffset
		if start+w > len(data) {
			return nil, fmt.Errorf("row: fixed column %q out of range", col.Name)
		}
		v, err := decodeFixed(col, data[start:start+w])
		if err != nil {
			return nil, err
		}
		values[col.Name] = v
	}

	varAreaStart := rowCountSize + fixedAreaLen(fixed)
	for i, col := range variable {
		if i >= storedVarCount {
			// column added to the schema after this row was written
			values[col.Name] = nil
			continue
		}
		if !maskBit(mask, col.Number) {
			values[col.Name] = nil
			continue
		}
		segStart := varAreaStart + varStarts[i]
		segEnd := varAreaStart + varStarts[i+1]
		if segStart < 0 || segEnd > len(data) || segStart > segEnd {
			return nil, fmt.Errorf("row: variable column %q out of range", col.Name)
		}
		seg := data[segStart:segEnd]

		var v interface{}
		var err error
		switch {
		case col.IsLongValue():
			v, err = DecodeLongValue(c.LongValueIO, seg)
		case col.Type == TypeText:
			v, err = decodeText(col, seg)
		default:
			cp := make([]byte, len(seg))
			copy(cp, seg)
			v = cp
		}
		if err != nil {
			return nil, err
		}
		values[col.Name] = v
	}

	return values, nil
}

func fixedAreaLen(fixed []Column) int {
	max := 0
	for _, col := range fixed {
		w, err := col.FixedWidth()
		if err != nil || w == 0 {
			continue
		}
		if end := col.FixedOffset + w; end > max {
			max = end
		}
	}
	return max
}

func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	return nil, false
}
