package report

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the table output format.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// TableBuilder renders rows once in the Mode chosen at creation.
type TableBuilder interface {
	Header(cols ...string)
	Row(vals ...any)
	Footer(vals ...any)
	// AlignRight right-aligns the given 1-based columns.
	AlignRight(cols ...int)
	// MaxWidth wraps column col beyond width characters.
	MaxWidth(col, width int)
	String() string
}

func NewTable(m Mode) TableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &prettyTable{writer: w, mode: m, cols: map[int]table.ColumnConfig{}}
}

type prettyTable struct {
	writer table.Writer
	mode   Mode
	cols   map[int]table.ColumnConfig
}

func (t *prettyTable) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.writer.AppendHeader(row)
}

func (t *prettyTable) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendRow(row)
}

func (t *prettyTable) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendFooter(row)
}

func (t *prettyTable) AlignRight(cols ...int) {
	for _, n := range cols {
		c := t.cols[n]
		c.Number = n
		c.Align = text.AlignRight
		t.cols[n] = c
	}
	t.apply()
}

func (t *prettyTable) MaxWidth(col, width int) {
	c := t.cols[col]
	c.Number = col
	c.WidthMax = width
	t.cols[col] = c
	t.apply()
}

func (t *prettyTable) apply() {
	cfgs := make([]table.ColumnConfig, 0, len(t.cols))
	for _, c := range t.cols {
		cfgs = append(cfgs, c)
	}
	t.writer.SetColumnConfigs(cfgs)
}

func (t *prettyTable) String() string {
	if t.mode == Markdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}
