package report

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TableBuilder accumulates the rows of a markdown table. The first row is
// the header.
type TableBuilder struct {
	rows [][]string
	cur  []string
}

// NewTable returns an empty table.
func NewTable() *TableBuilder { return &TableBuilder{} }

// AddLine appends a complete row.
func (t *TableBuilder) AddLine(cols ...any) *TableBuilder {
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = fmt.Sprint(c)
	}
	t.rows = append(t.rows, row)
	return t
}

// InitNewLine starts a row built column by column.
func (t *TableBuilder) InitNewLine() *TableBuilder {
	t.cur = []string{}
	return t
}

// AddColumn appends a column to the row started by InitNewLine.
func (t *TableBuilder) AddColumn(col string) *TableBuilder {
	t.cur = append(t.cur, col)
	return t
}

// FinalizeLine appends the row started by InitNewLine.
func (t *TableBuilder) FinalizeLine() *TableBuilder {
	if t.cur != nil {
		t.rows = append(t.rows, t.cur)
		t.cur = nil
	}
	return t
}

// Wrap splits a wide table into chunks of at most maxCols columns after the
// first keep columns, which are repeated in every chunk. The chunks are
// stacked vertically; the header of each chunk after the first becomes an
// ordinary row.
func (t *TableBuilder) Wrap(maxCols, keep int) *TableBuilder {
	if len(t.rows) == 0 || maxCols <= 0 {
		return t
	}
	width := 0
	for _, r := range t.rows {
		width = max(width, len(r))
	}
	if width-keep <= maxCols {
		return t
	}
	var out [][]string
	for start := keep; start < width; start += maxCols {
		end := min(start+maxCols, width)
		for _, r := range t.rows {
			row := make([]string, 0, keep+maxCols)
			row = append(row, cell(r, 0, keep)...)
			row = append(row, cell(r, start, end)...)
			for len(row) < keep+maxCols {
				row = append(row, "")
			}
			out = append(out, row)
		}
	}
	t.rows = out
	return t
}

func cell(row []string, from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		if i < len(row) {
			out = append(out, row[i])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// Build renders the table. Short rows are padded to the widest row.
func (t *TableBuilder) Build() []string {
	t.FinalizeLine()
	if len(t.rows) == 0 {
		return nil
	}
	width := 0
	for _, r := range t.rows {
		width = max(width, len(r))
	}
	lines := make([]string, 0, len(t.rows)+1)
	for i, r := range t.rows {
		lines = append(lines, "| "+strings.Join(cell(r, 0, width), " | ")+" |")
		if i == 0 {
			lines = append(lines, "|"+strings.Repeat(" --- |", width))
		}
	}
	return lines
}

var (
	headingRE   = regexp.MustCompile(`^(#+)\s+(.*?)\s*$`)
	anchorStrip = regexp.MustCompile(`[^\w\- ]`)
)

// AnchorName converts a heading into the anchor GitHub generates for it.
func AnchorName(heading string) string {
	a := strings.ToLower(strings.TrimSpace(heading))
	a = anchorStrip.ReplaceAllString(a, "")
	return strings.ReplaceAll(a, " ", "-")
}

// BuildTOC lists every heading from minLevel to maxLevel as a nested bullet
// list of links. Duplicate headings get GitHub's numbered anchors.
func BuildTOC(lines []string, minLevel, maxLevel int) []string {
	var toc []string
	seen := map[string]int{}
	for _, line := range lines {
		m := headingRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		anchor := AnchorName(m[2])
		if n := seen[anchor]; n > 0 {
			seen[anchor] = n + 1
			anchor = anchor + "-" + strconv.Itoa(n)
		} else {
			seen[anchor] = 1
		}
		if level < minLevel || level > maxLevel {
			continue
		}
		indent := strings.Repeat("  ", level-minLevel)
		toc = append(toc, fmt.Sprintf("%s* [%s](#%s)", indent, m[2], anchor))
	}
	return toc
}

// num formats a value with at most two decimal places, dropping trailing
// zeros.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

// periodLabel renders a period as "3s" or "7.5s".
func periodLabel(p float64) string { return num(p) + "s" }

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// fileSafe makes a site name usable inside a file name.
func fileSafe(s string) string { return unsafeFileChars.ReplaceAllString(s, "_") }
