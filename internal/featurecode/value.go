package featurecode

import (
	"strings"

	"golang.org/x/text/cases"
)

// Code is the integer code of a feature value within one dictionary.
type Code int32

// Absent marks a value that carries no information. Absent never equals
// anything, including another Absent.
const Absent Code = -1

// Valid reports whether the code refers to a real value.
func (c Code) Valid() bool {
	return c >= 0
}

// Raw is an attribute value as delivered by ingestion. Valid is false for a
// truly missing value (column absent, short row).
type Raw struct {
	Value string
	Valid bool
}

// String wraps a present raw value.
func String(value string) Raw {
	return Raw{Value: value, Valid: true}
}

// Missing is the raw form of a value that was never delivered.
var Missing = Raw{}

// emptyEquivalents are compared after trimming and case folding; the longest
// is 4 bytes, which lets IsEmptyEquivalent skip folding for anything longer.
var emptyEquivalents = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"nan":  {},
	"[]":   {},
	"{}":   {},
}

const maxEmptyEquivalentLen = 4

// Normalize returns the value to code and whether it carries information.
// Present values are returned byte for byte: two raw strings share a code
// only when they are equal.
func Normalize(raw Raw) (string, bool) {
	if !raw.Valid || IsEmptyEquivalent(raw.Value) {
		return "", false
	}
	return raw.Value, true
}

// IsEmptyEquivalent reports whether value is one of the textual forms that
// mean "no value".
func IsEmptyEquivalent(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) > maxEmptyEquivalentLen {
		return false
	}
	_, ok := emptyEquivalents[cases.Fold().String(value)]
	return ok
}
