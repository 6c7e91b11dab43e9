package ui

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RelayStatus is what `huddle status` reports about a relay.
type RelayStatus struct {
	Server       string
	Status       string
	Version      string
	Rooms        int
	Participants int
	Latency      time.Duration
}

// RenderStatus writes the relay status as a table to w.
func RenderStatus(w io.Writer, s RelayStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Relay " + s.Server)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Color.Header = text.Colors{text.Bold, text.FgCyan}

	statusColor := text.FgGreen
	if s.Status != "ok" {
		statusColor = text.FgRed
	}

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Status", statusColor.Sprint(s.Status)},
		{"Version", s.Version},
		{"Rooms", s.Rooms},
		{"Participants", s.Participants},
		{"Latency", s.Latency.Round(time.Millisecond)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
}
