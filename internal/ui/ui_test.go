package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeControls struct {
	muted   bool
	toggles int
	leaves  int
}

func (c *fakeControls) ToggleMute() bool {
	c.toggles++
	c.muted = !c.muted
	return c.muted
}

func (c *fakeControls) Leave() { c.leaves++ }

func TestRosterView(t *testing.T) {
	if got := RosterView(nil); !strings.Contains(got, "Waiting") {
		t.Errorf("empty roster = %q", got)
	}

	out := RosterView([]call.Member{
		{ID: "p1", Nickname: "alice", State: peer.StateConnected, HasStream: true, Level: 0.5},
		{ID: "p2", Nickname: "bob", State: peer.StateNegotiating, Muted: true},
	})
	for _, want := range []string{IconPeer + " alice", "bob", "connected", "negotiating", "50%", IconMuted} {
		if !strings.Contains(out, want) {
			t.Errorf("roster missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	RenderStatus(&buf, RelayStatus{
		Server:       "relay.example.com",
		Status:       "ok",
		Version:      "v1.2.3",
		Rooms:        3,
		Participants: 7,
		Latency:      12 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{"relay.example.com", "v1.2.3", "Participants", "7", "12ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestCallModelKeys(t *testing.T) {
	controls := &fakeControls{}
	store := call.NewStore()
	m := NewCallModel(controls, store, "standup", "alice")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	if controls.toggles != 1 {
		t.Errorf("toggles = %d", controls.toggles)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if controls.leaves != 1 {
		t.Errorf("leaves = %d", controls.leaves)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if m.View() != "" {
		t.Error("view not cleared after quitting")
	}
}

func TestCallModelRendersStore(t *testing.T) {
	store := call.NewStore()
	store.HandleEvent(session.Event{Kind: session.EventMessage, Message: protocol.RoomJoined("standup", "p1")})
	store.ParticipantJoined("p2", "bob")
	store.SetLocalMuted(true)

	m := NewCallModel(&fakeControls{}, store, "standup", "alice")
	m.Update(storeChangedMsg{})
	view := m.View()
	for _, want := range []string{"standup", "bob", "Muted"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestCallModelShowsReconnecting(t *testing.T) {
	store := call.NewStore()
	store.HandleEvent(session.Event{Kind: session.EventState, State: session.StateReconnecting})

	m := NewCallModel(&fakeControls{}, store, "standup", "alice")
	view := m.View()
	if !strings.Contains(view, IconConnect+" Reconnecting") {
		t.Errorf("view missing reconnect notice:\n%s", view)
	}
}
