package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures S16LE mono PCM in fixed-duration periods. The device
// runs in its own native context; each completed period is copied and handed
// to the chunk callback, which must hand off without blocking.
type Microphone struct {
	actx        *Context
	sampleRate  int
	channels    int
	chunkMillis int

	mu     sync.Mutex
	device *malgo.Device
}

// NewMicrophone prepares a capture device description. The device itself is
// opened by Start, so a session can defer mic access until it is Ready.
func NewMicrophone(actx *Context, sampleRate, channels, chunkMillis int) *Microphone {
	return &Microphone{
		actx:        actx,
		sampleRate:  sampleRate,
		channels:    channels,
		chunkMillis: chunkMillis,
	}
}

// Start opens the device and begins delivering chunks.
func (m *Microphone) Start(onChunk func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return fmt.Errorf("microphone already started")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.channels)
	cfg.SampleRate = uint32(m.sampleRate)
	cfg.PeriodSizeInMilliseconds = uint32(m.chunkMillis)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			pcm := make([]byte, len(input))
			copy(pcm, input)
			onChunk(pcm)
		},
	}

	device, err := malgo.InitDevice(m.actx.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.device = device
	return nil
}

// Close stops capture and releases the device, unblocking its native context.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	m.device.Uninit()
	m.device = nil
	return nil
}
