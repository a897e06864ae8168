package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column.
type column struct {
	Header string
	Right  bool
	// Max wraps longer cells; zero leaves the width unbounded.
	Max int
}

var (
	telemetryColumns = []column{{Header: "Sensor"}, {Header: "Value", Right: true}}
	historyColumns   = []column{
		{Header: "Started"},
		{Header: "Session"},
		{Header: "Source", Max: 32},
		{Header: "Colors", Right: true},
		{Header: "Size", Right: true},
		{Header: "Passes", Right: true},
		{Header: "Outcome", Max: 48},
	}
)

// renderTable draws rows under cols with headers kept in their given case.
// Short rows are padded with blanks; caption goes under the table.
func renderTable(cols []column, rows [][]string, caption string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, 0, len(cols))
	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		header = append(header, c.Header)
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, WidthMax: c.Max}
		if c.Right {
			cfg.Align = text.AlignRight
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	if caption != "" {
		tw.SetCaption(caption)
	}
	return tw.Render()
}
