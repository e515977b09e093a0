// Package tracker maps free-text agent turns onto the form's field list.
//
// The answering agent annotates each question with a trailing bracketed
// marker, e.g. "What is your name? [name]". Parsing the marker and resolving
// it against the known fields are kept separate so the marker format can
// evolve without touching index resolution.
package tracker

import (
	"regexp"
	"strings"

	"github.com/tbxark/formviewer/types"
)

// markerPattern matches the first bracketed span with no nested brackets.
var markerPattern = regexp.MustCompile(`\[([^\[\]]*)\]`)

// ExtractFieldName returns the inner text of the first bracketed marker in
// an agent turn, verbatim. ok is false when the turn carries no marker; such
// turns are treated as non-advancing small talk.
func ExtractFieldName(text string) (string, bool) {
	match := markerPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Annotate parses a finalized agent turn's text into its structured
// annotation, or nil when the turn carries no marker.
func Annotate(text string) *types.Annotation {
	name, ok := ExtractFieldName(text)
	if !ok {
		return nil
	}
	return &types.Annotation{AnsweredField: name}
}

// IsSentinel reports whether a field name is the reserved completion marker.
func IsSentinel(name string) bool {
	return strings.EqualFold(name, types.SentinelField)
}

// FieldList is the ordered set of field descriptors for one form.
type FieldList []types.FieldDescriptor

// IndexOf returns the zero-based position of the first descriptor whose name
// exactly equals the given one, or -1 when absent. Duplicate names collapse
// to the first occurrence.
func (l FieldList) IndexOf(name string) int {
	for i, field := range l {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in declaration order.
func (l FieldList) Names() []string {
	names := make([]string, 0, len(l))
	for _, field := range l {
		names = append(names, field.Name)
	}
	return names
}
