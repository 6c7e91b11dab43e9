// Package call ties the session, the peer orchestrator, the local media
// source and the UI store together for one participant.
package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/BioHazard786/huddle/internal/session"
)

// DefaultLevelInterval is how often the local audio level is broadcast.
const DefaultLevelInterval = 500 * time.Millisecond

type Options struct {
	Session      *session.Client
	Orchestrator *peer.Orchestrator
	Source       media.Source
	// Store defaults to a fresh Store.
	Store         *Store
	LevelInterval time.Duration
	Logger        *slog.Logger
}

// Call is the participant side of a room.
type Call struct {
	session  *session.Client
	orch     *peer.Orchestrator
	source   media.Source
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	unsub    []func()

	mu          sync.Mutex
	roomID      string
	nickname    string
	joined      bool
	needsRejoin bool
	stopLevel   chan struct{}
	closed      bool
}

// New wires the orchestrator and the store to the session's events.
func New(opts Options) *Call {
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = DefaultLevelInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Call{
		session:  opts.Session,
		orch:     opts.Orchestrator,
		source:   opts.Source,
		store:    opts.Store,
		interval: opts.LevelInterval,
		logger:   logger.With("component", "call"),
	}
	c.unsub = append(c.unsub,
		c.session.Subscribe(c.orch.HandleEvent),
		c.session.Subscribe(c.store.HandleEvent),
		c.session.Subscribe(c.handleSession),
		c.orch.Subscribe(c.store),
	)
	return c
}

// Store returns the state the UI renders.
func (c *Call) Store() *Store {
	return c.store
}

// Join connects if needed and enters roomID. Without a local stream it
// fails before touching the session.
func (c *Call) Join(ctx context.Context, roomID, nickname string) error {
	if _, ok := c.source.Stream(); !ok {
		return callerr.NewError("join", callerr.ErrNoLocalStream)
	}
	if roomID == "" {
		return callerr.WrapError("join", callerr.ErrProtocol, "roomId is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return callerr.NewError("join", callerr.ErrClosed)
	}
	c.mu.Unlock()

	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if err := c.source.Start(); err != nil {
		return callerr.WrapError("join", callerr.ErrMedia, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.nickname = nickname
	c.joined = true
	c.needsRejoin = false

	if !c.session.JoinRoom(roomID, nickname) {
		c.joined = false
		c.source.Stop()
		return callerr.NewError("join", callerr.ErrNotConnected)
	}
	c.logger.Info("joining room", "room_id", roomID, "nickname", nickname)
	c.startLevelLocked()
	return nil
}

// Leave exits the room, closes every peer link and stops the source.
func (c *Call) Leave() {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return
	}
	c.joined = false
	c.needsRejoin = false
	c.stopLevelLocked()
	roomID := c.roomID
	c.mu.Unlock()

	c.session.LeaveRoom()
	c.orch.CloseAllConnections()
	c.source.Stop()
	c.store.Reset()
	c.logger.Info("left room", "room_id", roomID)
}

// ToggleMute flips the local mute state, tells connected peers and returns
// the new state.
func (c *Call) ToggleMute() bool {
	muted := !c.source.Muted()
	c.source.SetMuted(muted)
	c.store.SetLocalMuted(muted)
	sent := c.orch.BroadcastMuteStatus(muted)
	c.logger.Debug("mute toggled", "muted", muted, "peers", sent)
	return muted
}

// Close leaves the room and shuts the session down.
func (c *Call) Close() {
	c.Leave()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	for _, unsubscribe := range c.unsub {
		unsubscribe()
	}
	c.orch.Close()
	c.session.Disconnect()
}

// handleSession rejoins the remembered room once a dropped session is back.
func (c *Call) handleSession(ev session.Event) {
	if ev.Kind != session.EventState {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.State {
	case session.StateReconnecting:
		if c.joined {
			c.needsRejoin = true
		}
	case session.StateConnected:
		if c.joined && c.needsRejoin {
			c.needsRejoin = false
			c.logger.Info("rejoining room after reconnect", "room_id", c.roomID)
			c.session.JoinRoom(c.roomID, c.nickname)
		}
	}
}

// startLevelLocked must be called with c.mu held.
func (c *Call) startLevelLocked() {
	if c.stopLevel != nil {
		return
	}
	stop := make(chan struct{})
	c.stopLevel = stop

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				level := 0.0
				if !c.source.Muted() {
					level = c.source.Level()
				}
				c.orch.BroadcastAudioLevel(level)
			}
		}
	}()
}

// stopLevelLocked must be called with c.mu held.
func (c *Call) stopLevelLocked() {
	if c.stopLevel != nil {
		close(c.stopLevel)
		c.stopLevel = nil
	}
}
