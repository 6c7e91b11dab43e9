package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controls are the actions the call view can trigger.
type Controls interface {
	ToggleMute() bool
	Leave()
}

type storeChangedMsg struct{}

// CallModel is the live view of a call.
type CallModel struct {
	controls Controls
	store    *call.Store
	roomID   string
	nickname string
	snapshot call.Snapshot
	spinner  spinner.Model
	quitting bool
}

func NewCallModel(controls Controls, store *call.Store, roomID, nickname string) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		controls: controls,
		store:    store,
		roomID:   roomID,
		nickname: nickname,
		snapshot: store.Snapshot(),
		spinner:  s,
	}
}

// RunCall shows the call view until the user leaves.
func RunCall(controls Controls, store *call.Store, roomID, nickname string) error {
	_, err := tea.NewProgram(NewCallModel(controls, store, roomID, nickname)).Run()
	return err
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForChange())
}

func (m *CallModel) waitForChange() tea.Cmd {
	changes := m.store.Changes()
	return func() tea.Msg {
		<-changes
		return storeChangedMsg{}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.controls.ToggleMute()
			m.snapshot = m.store.Snapshot()
		case "q", "ctrl+c":
			m.quitting = true
			m.controls.Leave()
			return m, tea.Quit
		}

	case storeChangedMsg:
		m.snapshot = m.store.Snapshot()
		return m, m.waitForChange()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, m.roomID)))
	b.WriteString("\n")

	snap := m.snapshot
	switch snap.SessionState {
	case session.StateConnected:
		if snap.RoomID == "" {
			b.WriteString(fmt.Sprintf("%s Joining as %s\n\n", m.spinner.View(), SelfStyle.Render(m.nickname)))
		} else {
			b.WriteString(fmt.Sprintf("%s Connected as %s\n\n", StatusStyle.Render("LIVE"), SelfStyle.Render(m.nickname)))
		}
	case session.StateDisconnected:
		msg := "Disconnected from relay"
		if snap.SessionErr != nil {
			msg = snap.SessionErr.Error()
		}
		b.WriteString(ErrorStyle.Render(IconError+" "+msg) + "\n\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), WarningStyle.Render(IconConnect+" "+sessionLabel(snap.SessionState))))
	}

	mic := IconMic + " Mic on"
	if snap.LocalMuted {
		mic = IconMuted + " Muted"
	}
	b.WriteString(mic + "\n\n")

	b.WriteString(RosterView(snap.Members))
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("m mute/unmute · q leave"))
	return b.String()
}

func sessionLabel(s session.State) string {
	switch s {
	case session.StateConnecting:
		return "Connecting…"
	case session.StateReconnecting:
		return "Reconnecting…"
	case session.StateClosed:
		return "Closed"
	default:
		return s.String()
	}
}
