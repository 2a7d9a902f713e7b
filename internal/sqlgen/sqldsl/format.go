package sqldsl

import "strings"

// indentUnit is the prefix written once per indent level.
const indentUnit = "  "

// Formatter accumulates rendered SQL as lines.
// Indentation applies to lines opened after Indent/Dedent is called, so a
// node can open a block, render children and close it without tracking
// column positions itself.
type Formatter struct {
	lines  []string
	cur    strings.Builder
	open   bool
	indent int
}

// NewFormatter creates an empty formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Write appends s to the current line, opening it at the current indent.
func (f *Formatter) Write(s string) {
	if s == "" {
		return
	}
	if !f.open {
		f.cur.WriteString(strings.Repeat(indentUnit, f.indent))
		f.open = true
	}
	f.cur.WriteString(s)
}

// WriteLine starts a new line and writes s to it.
func (f *Formatter) WriteLine(s string) {
	f.Break()
	f.Write(s)
}

// Break ends the current line. Breaking an empty line is a no-op, so callers
// can break defensively without producing blank lines.
func (f *Formatter) Break() {
	if !f.open {
		return
	}
	f.lines = append(f.lines, f.cur.String())
	f.cur.Reset()
	f.open = false
}

// Indent increases the indent of subsequently opened lines.
func (f *Formatter) Indent() {
	f.indent++
}

// Dedent decreases the indent of subsequently opened lines.
func (f *Formatter) Dedent() {
	if f.indent > 0 {
		f.indent--
	}
}

// JoinInline calls fn for each index, writing sep between items on the
// current line.
func (f *Formatter) JoinInline(n int, sep string, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.Write(sep)
		}
		fn(i)
	}
}

// JoinLines calls fn for each index with every item on its own line.
// sep is appended to each item except the last (typically ",").
func (f *Formatter) JoinLines(n int, sep string, fn func(i int)) {
	for i := 0; i < n; i++ {
		f.Break()
		fn(i)
		if i < n-1 {
			f.Write(sep)
		}
	}
}

// String returns the accumulated text, including an unfinished line.
func (f *Formatter) String() string {
	if !f.open {
		return strings.Join(f.lines, "\n")
	}
	if len(f.lines) == 0 {
		return f.cur.String()
	}
	return strings.Join(f.lines, "\n") + "\n" + f.cur.String()
}
