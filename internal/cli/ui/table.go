// Package ui renders daoctl output: aligned tables and formatted
// messages, colored unless disabled.
package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Status marks how a table row is highlighted
type Status int

const (
	StatusNone Status = iota
	StatusOK
	StatusFailed
	StatusSlow
)

// Table renders rows under a header, aligned by column
type Table struct {
	writer  io.Writer
	headers []string
	rows    []row
	noColor bool
}

type row struct {
	cells  []string
	status Status
}

// TableOptions configures table behavior
type TableOptions struct {
	NoColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, headers []string, opts *TableOptions) *Table {
	t := &Table{writer: w, headers: headers}
	if opts != nil {
		t.noColor = opts.NoColor
	}
	return t
}

// AddRow adds an unhighlighted row
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, row{cells: cells})
}

// AddStatusRow adds a row colored by status: green for ok, red for
// failed, yellow for slow.
func (t *Table) AddStatusRow(status Status, cells ...string) {
	t.rows = append(t.rows, row{cells: cells, status: status})
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. A table without headers renders nothing.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range t.rows {
		for i, cell := range r.cells {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	t.line(t.headers, widths, t.color(color.Bold, color.FgCyan))

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.line(sep, widths, t.color(color.FgHiBlack))

	for _, r := range t.rows {
		t.line(r.cells, widths, t.statusColor(r.status))
	}
}

// line pads every cell before coloring so escape codes do not skew the
// alignment.
func (t *Table) line(cells []string, widths []int, c *color.Color) {
	n := min(len(cells), len(widths))
	for i := 0; i < n; i++ {
		cell := cells[i]
		if i < n-1 {
			cell = padRight(cell, widths[i])
		}
		if c != nil {
			c.Fprint(t.writer, cell)
		} else {
			fmt.Fprint(t.writer, cell)
		}
		if i < n-1 {
			fmt.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)
}

func (t *Table) statusColor(s Status) *color.Color {
	switch s {
	case StatusOK:
		return t.color(color.FgGreen)
	case StatusFailed:
		return t.color(color.FgRed)
	case StatusSlow:
		return t.color(color.FgYellow)
	}
	return nil
}

func (t *Table) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
