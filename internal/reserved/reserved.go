// Package reserved validates table and column names against the Jet
// reserved-word list (spec.md 4.10: "table/column name validation"),
// backed by a radix tree for fast prefix-aware lookups.
package reserved

import (
	"strings"

	radix "github.com/armon/go-radix"
)

var words = newTree()

func newTree() *radix.Tree {
	t := radix.New()
	for _, w := range reservedWords {
		t.Insert(strings.ToUpper(w), true)
	}
	return t
}

// IsReserved reports whether name (case-insensitively) is one of Jet's
// reserved identifiers.
func IsReserved(name string) bool {
	_, ok := words.Get(strings.ToUpper(name))
	return ok
}

// Validate checks a proposed table or column name against the reserved
// list and the "x"-prefix escape rule (spec.md 4.10: a name that collides
// with a reserved word may still be used if the caller escapes it with a
// leading "x", e.g. "xDate" for the reserved word "Date").
func Validate(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if !IsReserved(name) {
		return nil
	}
	if len(name) > 1 && (name[0] == 'x' || name[0] == 'X') && IsReserved(name[1:]) {
		return nil // escaped: "xDate" is a valid name for the reserved word "Date"
	}
	return &ReservedWordError{Name: name}
}

// ReservedWordError reports that a requested identifier collides with a
// Jet reserved word and was not escaped.
type ReservedWordError struct {
	Name string
}

func (e *ReservedWordError) Error() string {
	return "reserved: \"" + e.Name + "\" is a reserved word; prefix with \"x\" to use it as an identifier"
}

// ErrEmptyName is returned by Validate for an empty identifier.
var ErrEmptyName = emptyNameError{}

type emptyNameError struct{}

func (emptyNameError) Error() string { return "reserved: identifier must not be empty" }

// reservedWords is the Jet SQL / Access reserved-word list (spec.md 4.10).
// Not exhaustive of every Access version's list, but covers the words a
// caller is realistically likely to collide with.
var reservedWords = []string{
	"AND", "OR", "NOT", "XOR", "EQV", "IMP",
	"SELECT", "FROM", "WHERE", "GROUP", "ORDER", "BY", "HAVING",
	"INSERT", "UPDATE", "DELETE", "INTO", "VALUES", "SET",
	"CREATE", "ALTER", "DROP", "TABLE", "INDEX", "VIEW", "PROCEDURE",
	"PRIMARY", "FOREIGN", "KEY", "CONSTRAINT", "UNIQUE", "REFERENCES",
	"NULL", "TRUE", "FALSE", "DATE", "TIME", "TIMESTAMP", "DATETIME",
	"TEXT", "MEMO", "BYTE", "LONG", "INTEGER", "SINGLE", "DOUBLE", "CURRENCY",
	"COUNTER", "GUID", "BIT", "BINARY", "CHAR", "VARCHAR",
	"AS", "IN", "IS", "LIKE", "BETWEEN", "EXISTS", "ALL", "ANY", "SOME",
	"DISTINCT", "TOP", "UNION", "JOIN", "INNER", "OUTER", "LEFT", "RIGHT",
	"ON", "ASC", "DESC", "NULLS", "DEFAULT", "CHECK", "CASCADE",
	"USER", "OPTION", "OPTIONAL", "LEVEL", "VALUE", "TYPE",
	"PASSWORD", "OWNER", "DATABASE", "PARAMETER", "PARAMETERS", "REPORT", "FORM",
}
