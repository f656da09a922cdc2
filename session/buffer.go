package session

import "sync"

// PlaybackBuffer holds PCM audio that has arrived but not yet been played.
// The dispatcher appends at the tail; the playback sink consumes from the
// head in fixed-size pulls. Both sides run in different goroutines, so every
// operation takes the lock. Clear is the interrupt path and is atomic with
// respect to concurrent append and consume.
type PlaybackBuffer struct {
	mu  sync.Mutex
	buf []byte
}

// NewPlaybackBuffer creates an empty buffer.
func NewPlaybackBuffer() *PlaybackBuffer {
	return &PlaybackBuffer{}
}

// Append queues audio at the tail.
func (b *PlaybackBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, chunk...)
	b.mu.Unlock()
}

// Pull returns exactly n bytes from the head. When fewer are buffered the
// tail is zero-padded with silence; an underrun must never stall the sink.
func (b *PlaybackBuffer) Pull(n int) []byte {
	out := make([]byte, n)
	b.mu.Lock()
	took := copy(out, b.buf)
	b.buf = b.buf[took:]
	if len(b.buf) == 0 {
		b.buf = nil
	}
	b.mu.Unlock()
	return out
}

// Read implements io.Reader for the audio sink. It always fills p and never
// returns an error, so the player keeps pulling at its fixed rate and plays
// silence through gaps.
func (b *PlaybackBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	took := copy(p, b.buf)
	b.buf = b.buf[took:]
	if len(b.buf) == 0 {
		b.buf = nil
	}
	b.mu.Unlock()
	for i := took; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Clear drops everything buffered. Called when the server interrupts the
// model's turn; no pre-interrupt audio may be played afterwards.
func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	b.buf = nil
	b.mu.Unlock()
}

// Len reports the bytes currently buffered.
func (b *PlaybackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
