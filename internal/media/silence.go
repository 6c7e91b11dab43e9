package media

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// FrameDuration is the length of one Opus frame written by SilenceSource.
const FrameDuration = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SilenceSource is a Source that sends Opus silence. It stands in for a
// microphone so calls can be set up from a terminal.
type SilenceSource struct {
	track *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	muted   bool
	stop    chan struct{}
	done    chan struct{}
	written uint64
}

// NewSilenceSource creates the Opus track labelled with streamID.
func NewSilenceSource(streamID string) (*SilenceSource, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		streamID,
	)
	if err != nil {
		return nil, err
	}
	return &SilenceSource{track: track}, nil
}

func (s *SilenceSource) Stream() (*LocalStream, bool) {
	return &LocalStream{Track: s.track}, true
}

// Start begins writing frames. Calling it while running does nothing.
func (s *SilenceSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.pump(s.stop, s.done)
	return nil
}

// Stop halts the pump and waits for it to exit.
func (s *SilenceSource) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *SilenceSource) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *SilenceSource) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Level is always zero: the source only ever produces silence.
func (s *SilenceSource) Level() float64 {
	return 0
}

// Frames returns how many frames have been written.
func (s *SilenceSource) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *SilenceSource) pump(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Muted sources keep the clock running but send nothing.
			if s.Muted() {
				continue
			}
			if err := s.track.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: FrameDuration}); err != nil {
				continue
			}
			s.mu.Lock()
			s.written++
			s.mu.Unlock()
		}
	}
}
