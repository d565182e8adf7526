package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

// Cell caps in terminal columns. Wide runes count as two.
const (
	titleWidth   = 48
	chapterWidth = 40
	tagsWidth    = 32
)

// column describes one table column. Width of zero leaves cells unclipped.
type column struct {
	Header string
	Right  bool
	Width  int
}

// clip shortens s to fit width terminal columns, ending it with an ellipsis.
func clip(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(lo.Map(columns, func(c column, _ int) any { return c.Header }))

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i, c := range columns {
			cell := ""
			if i < len(row) {
				cell = clip(row[i], c.Width)
			}
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs(lo.Map(columns, func(c column, i int) table.ColumnConfig {
		align := text.AlignLeft
		if c.Right {
			align = text.AlignRight
		}
		return table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}))

	return tw.Render()
}
