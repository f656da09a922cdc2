package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays S16LE mono PCM by pulling from a reader. The reader must
// never block and must pad with silence on underrun; the pull cadence is the
// device's, not ours.
type Speaker struct {
	sampleRate int
	channels   int

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewSpeaker prepares a playback device description.
func NewSpeaker(sampleRate, channels int) *Speaker {
	return &Speaker{sampleRate: sampleRate, channels: channels}
}

// Start opens the device and begins pulling from src.
func (s *Speaker) Start(src io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return fmt.Errorf("speaker already started")
	}

	opts := &oto.NewContextOptions{
		SampleRate:   s.sampleRate,
		ChannelCount: s.channels,
		Format:       oto.FormatSignedInt16LE,
		// Small buffer for low latency; the source pads underruns itself.
		BufferSize: 100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return fmt.Errorf("failed to open playback device: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.player = ctx.NewPlayer(src)
	s.player.Play()
	return nil
}

// Close stops playback.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}
