package ui

import (
	"fmt"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RosterView renders the remote members of a room.
func RosterView(members []call.Member) string {
	if len(members) == 0 {
		return MutedStyle.Render(IconWaiting + " Waiting for others to join")
	}

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			IconPeer + " " + truncate(m.Nickname, 24),
			connectionLabel(m),
			micLabel(m),
			fmt.Sprintf("%3.0f%%", m.Level*100),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Participant", "Link", "Mic", "Level").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func connectionLabel(m call.Member) string {
	switch m.State {
	case peer.StateConnected:
		if m.HasStream {
			return "connected"
		}
		return "connected (no audio)"
	case peer.StateError:
		return "failed"
	default:
		return m.State.String()
	}
}

func micLabel(m call.Member) string {
	if m.Muted {
		return IconMuted
	}
	return IconMic
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
