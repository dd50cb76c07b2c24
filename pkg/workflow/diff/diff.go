// Package diff renders field-level previews of proposed workflow changes.
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// Op is the kind of a diff line.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Line is one line of a field diff.
type Line struct {
	Op   Op
	Text string
}

// FieldDiff compares the old and new value of one field.
type FieldDiff struct {
	Field string
	Old   string
	New   string
	Lines []Line
}

// Changed reports whether the values differ.
func (f FieldDiff) Changed() bool {
	return f.Old != f.New
}

// Field diffs two values of the named field line by line.
func Field(name string, oldValue, newValue any) FieldDiff {
	d := FieldDiff{Field: name, Old: Stringify(oldValue), New: Stringify(newValue)}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(d.Old, d.New)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, df := range diffs {
		op := OpEqual
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		for _, l := range splitLines(df.Text) {
			d.Lines = append(d.Lines, Line{Op: op, Text: l})
		}
	}
	return d
}

// Stringify renders a field value for display. Strings are kept verbatim,
// nil is empty and anything else is indented JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Preview diffs every field set in changes against the named entity. A
// missing entity, as for a create, diffs against empty values.
func Preview(doc *workflow.Document, kind workflow.Kind, name string, changes workflow.Changes) []FieldDiff {
	if changes == nil {
		return nil
	}
	var out []FieldDiff
	for _, f := range changes.Fields() {
		newValue, _ := changes.Value(f)
		var oldValue any
		if doc != nil {
			oldValue, _ = doc.EntityValue(kind, name, f)
		}
		out = append(out, Field(f, oldValue, newValue))
	}
	return out
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	equalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
)

// Render prints diffs in a unified-like layout. With styled set, lines are
// colored for a terminal.
func Render(diffs []FieldDiff, styled bool) string {
	var b strings.Builder
	paint := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	for i, d := range diffs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(paint(headerStyle, "@@ "+d.Field+" @@"))
		b.WriteString("\n")
		for _, l := range d.Lines {
			switch l.Op {
			case OpInsert:
				b.WriteString(paint(insertStyle, "+ "+l.Text))
			case OpDelete:
				b.WriteString(paint(deleteStyle, "- "+l.Text))
			default:
				b.WriteString(paint(equalStyle, "  "+l.Text))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
