// Package media holds the local audio source handed to every peer link and
// the sink that consumes remote audio.
package media

import (
	"github.com/pion/webrtc/v4"
)

// LocalStream is the outbound audio attached to each peer link.
type LocalStream struct {
	Track webrtc.TrackLocal
}

// Source produces the local stream. Stream reports false when there is no
// local media to send.
type Source interface {
	Stream() (*LocalStream, bool)
	Start() error
	Stop()
	Muted() bool
	SetMuted(muted bool)
	// Level is the current input level in [0, 1].
	Level() float64
}

// PacketReader yields raw RTP packets until the remote side goes away.
type PacketReader interface {
	ReadPacket(buf []byte) (int, error)
}

// RemoteStream is a remote peer's audio as delivered by its link.
type RemoteStream struct {
	ID     string
	Codec  string
	Reader PacketReader
}

// NewRemoteStream wraps a pion remote track.
func NewRemoteStream(track *webrtc.TrackRemote) *RemoteStream {
	return &RemoteStream{
		ID:     track.StreamID(),
		Codec:  track.Codec().MimeType,
		Reader: trackReader{track: track},
	}
}

type trackReader struct {
	track *webrtc.TrackRemote
}

func (r trackReader) ReadPacket(buf []byte) (int, error) {
	n, _, err := r.track.Read(buf)
	return n, err
}

// Sink consumes remote streams. Attach replaces any stream already held for
// peerID; Detach of an unknown peer is a no-op.
type Sink interface {
	Attach(peerID string, stream *RemoteStream)
	Detach(peerID string)
}
