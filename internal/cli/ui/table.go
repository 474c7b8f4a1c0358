// Package ui renders terminal output for the protostream commands.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table writes aligned columns with a bold header row.
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends a row. Cells beyond the header count are dropped.
func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows added
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header, a separator and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	rule := color.New(color.FgHiBlack)
	if t.noColor {
		header.DisableColor()
		rule.DisableColor()
	}

	for i, h := range t.headers {
		header.Fprint(t.w, t.cell(h, i, widths))
	}
	fmt.Fprintln(t.w)
	for i, width := range widths {
		rule.Fprint(t.w, t.cell(strings.Repeat("-", width), i, widths))
	}
	fmt.Fprintln(t.w)

	for _, row := range t.rows {
		for i, c := range row {
			fmt.Fprint(t.w, t.cell(c, i, widths))
		}
		fmt.Fprintln(t.w)
	}
}

// cell pads all but the last column and separates columns by two spaces.
func (t *Table) cell(s string, col int, widths []int) string {
	if col == len(widths)-1 {
		return s
	}
	return s + strings.Repeat(" ", widths[col]-len(s)+2)
}

// Header writes a bold title line
func Header(w io.Writer, title string, noColor bool) {
	c := color.New(color.Bold, color.FgCyan)
	if noColor {
		c.DisableColor()
	}
	c.Fprintln(w, title)
}
