package media

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const readBufferSize = 1500

// StreamStats are the counters CountingSink keeps per peer.
type StreamStats struct {
	StreamID string
	Codec    string
	Packets  uint64
	Bytes    uint64
}

type drain struct {
	stream   *RemoteStream
	packets  atomic.Uint64
	bytes    atomic.Uint64
	detached atomic.Bool
	done     chan struct{}
}

// CountingSink drains every attached remote stream and counts what
// arrives. Nothing is played back.
type CountingSink struct {
	logger *slog.Logger

	mu     sync.Mutex
	drains map[string]*drain
}

func NewCountingSink(logger *slog.Logger) *CountingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountingSink{
		logger: logger,
		drains: make(map[string]*drain),
	}
}

func (s *CountingSink) Attach(peerID string, stream *RemoteStream) {
	d := &drain{stream: stream, done: make(chan struct{})}

	s.mu.Lock()
	if old, ok := s.drains[peerID]; ok {
		old.detached.Store(true)
	}
	s.drains[peerID] = d
	s.mu.Unlock()

	s.logger.Debug("remote stream attached", "peer_id", peerID, "stream_id", stream.ID, "codec", stream.Codec)
	go s.run(peerID, d)
}

// Detach stops counting for peerID. The drain goroutine exits on its next
// read, which fails once the link is closed.
func (s *CountingSink) Detach(peerID string) {
	s.mu.Lock()
	d, ok := s.drains[peerID]
	delete(s.drains, peerID)
	s.mu.Unlock()

	if ok {
		d.detached.Store(true)
		s.logger.Debug("remote stream detached", "peer_id", peerID)
	}
}

// Stats returns the counters for peerID.
func (s *CountingSink) Stats(peerID string) (StreamStats, bool) {
	s.mu.Lock()
	d, ok := s.drains[peerID]
	s.mu.Unlock()
	if !ok {
		return StreamStats{}, false
	}
	return StreamStats{
		StreamID: d.stream.ID,
		Codec:    d.stream.Codec,
		Packets:  d.packets.Load(),
		Bytes:    d.bytes.Load(),
	}, true
}

// Attached lists the peers with a stream.
func (s *CountingSink) Attached() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.drains))
	for id := range s.drains {
		ids = append(ids, id)
	}
	return ids
}

func (s *CountingSink) run(peerID string, d *drain) {
	defer close(d.done)
	if d.stream.Reader == nil {
		return
	}

	buf := make([]byte, readBufferSize)
	for !d.detached.Load() {
		n, err := d.stream.Reader.ReadPacket(buf)
		if err != nil {
			s.logger.Debug("remote stream ended", "peer_id", peerID, "error", err)
			return
		}
		if d.detached.Load() {
			return
		}
		d.packets.Add(1)
		d.bytes.Add(uint64(n))
	}
}
