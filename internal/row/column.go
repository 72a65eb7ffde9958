// Package row implements the table row codec: fixed area, null/boolean
// mask, variable offsets, jump table, and long-value pointers (spec.md
// 4.5). A typed Column descriptor is kept separate from the byte-level
// Encode/Decode pair, covering the full Jet column-type set.
package row

import "fmt"

// Type is a Jet column type tag.
type Type byte

const (
	TypeBoolean      Type = 0x01
	TypeByte         Type = 0x02
	TypeInteger      Type = 0x03 // 16-bit
	TypeLong         Type = 0x04 // 32-bit
	TypeMoney        Type = 0x05
	TypeFloat        Type = 0x06
	TypeDouble       Type = 0x07
	TypeShortDateTime Type = 0x08
	TypeText         Type = 0x0A
	TypeOLE          Type = 0x0B
	TypeMemo         Type = 0x0C
	TypeGUID         Type = 0x0F
	TypeNumeric      Type = 0x10
	TypeComplex      Type = 0x12
)

// Flags describes the column-descriptor bit flags (spec.md 4.3.. column
// descriptor: "flags (fixed/variable/auto-number/compressed-unicode)").
type Flags uint16

const (
	FlagFixedLen Flags = 1 << iota
	FlagAutoNumber
	FlagCompressedUnicode
	FlagHyperlink
)

// Column is one column's descriptor: its on-disk placement plus type
// metadata. Columns are immutable once a table's tdef page is written
// (spec.md 3 Lifecycles).
type Column struct {
	Name   string
	Number int // column number as stored in the tdef (not necessarily index)
	Type   Type

	Precision byte
	Scale     byte

	Flags Flags

	// Length is the fixed byte length for fixed columns, or the declared
	// max length for variable columns (informational only -- the actual
	// stored length is read from the jump table).
	Length int

	// FixedOffset is this column's byte offset within the row's fixed
	// data area. Meaningless for variable columns.
	FixedOffset int

	// VariableIndex is this column's position in variable-column
	// declaration order. Meaningless for fixed columns.
	VariableIndex int

	// defaultValueExpr and validationRule hold the column's tdef-stored
	// default-value expression and validation-rule expression bytes
	// (spec.md 4.10), in the Jet expression-language encoding produced by
	// Access's own parser. This module does not evaluate them -- they are
	// surfaced to callers verbatim for a higher layer to interpret, through
	// DefaultValueExpr and ValidationRule below.
	defaultValueExpr []byte
	validationRule   []byte
	ValidationText   string
}

// DefaultValueExpr returns the column's default-value expression bytes, or
// nil if none was stored.
func (c Column) DefaultValueExpr() []byte { return c.defaultValueExpr }

// ValidationRule returns the column's validation-rule expression bytes, or
// nil if none was stored.
func (c Column) ValidationRule() []byte { return c.validationRule }

// WithDefaultValueExpr returns a copy of c carrying the given default-value
// expression bytes, for use by the table-definition decoder.
func (c Column) WithDefaultValueExpr(b []byte) Column { c.defaultValueExpr = b; return c }

// WithValidationRule returns a copy of c carrying the given validation-rule
// expression bytes, for use by the table-definition decoder.
func (c Column) WithValidationRule(b []byte) Column { c.validationRule = b; return c }

// IsFixed reports whether the column is stored in the row's fixed area.
func (c Column) IsFixed() bool { return c.Flags&FlagFixedLen != 0 }

// IsLongValue reports whether the column's payload is routed through the
// long-value (memo/OLE) overflow mechanism rather than the inline
// variable-length area.
func (c Column) IsLongValue() bool { return c.Type == TypeMemo || c.Type == TypeOLE }

// FixedWidth returns the number of bytes this column occupies in the
// fixed data area for its declared type, used to validate tdef layout.
func (c Column) FixedWidth() (int, error) {
	switch c.Type {
	case TypeBoolean:
		return 0, nil // booleans live only in the null/bool mask
	case TypeByte:
		return 1, nil
	case TypeInteger:
		return 2, nil
	case TypeLong, TypeFloat, TypeShortDateTime:
		return 4, nil
	case TypeMoney, TypeDouble:
		return 8, nil
	case TypeGUID:
		return 16, nil
	case TypeNumeric:
		return 16, nil // two's-complement magnitude width, spec.md 4.7.1
	case TypeComplex:
		return 4, nil
	default:
		return 0, fmt.Errorf("row: type 0x%02x has no fixed width", c.Type)
	}
}
