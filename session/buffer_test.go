package session

import (
	"bytes"
	"sync"
	"testing"
)

func TestPlaybackBuffer_ConservationAndOrder(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append([]byte{1, 2, 3})
	b.Append([]byte{4, 5})
	b.Append([]byte{6, 7, 8, 9})

	// Pulls of fixed size N drain every appended byte in order, with the last
	// underfull pull padded by exactly enough silence.
	var delivered []byte
	for i := 0; i < 3; i++ {
		delivered = append(delivered, b.Pull(4)...)
	}

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0, 0}
	if !bytes.Equal(delivered, want) {
		t.Errorf("delivered = %v, want %v", delivered, want)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", b.Len())
	}
}

func TestPlaybackBuffer_UnderrunIsSilence(t *testing.T) {
	b := NewPlaybackBuffer()
	got := b.Pull(8)
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("empty pull = %v, want all zeros", got)
	}
}

func TestPlaybackBuffer_Read(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append([]byte{9, 8, 7})

	p := make([]byte, 6)
	n, err := b.Read(p)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 6 {
		t.Errorf("Read() n = %d, want full buffer fill", n)
	}
	if !bytes.Equal(p, []byte{9, 8, 7, 0, 0, 0}) {
		t.Errorf("Read() p = %v", p)
	}
}

func TestPlaybackBuffer_ClearDiscardsPreInterruptAudio(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append([]byte{1, 1, 1, 1})
	b.Clear()

	if got := b.Pull(4); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("post-clear pull = %v, want silence", got)
	}

	// Audio appended after the interrupt plays normally.
	b.Append([]byte{2, 2})
	if got := b.Pull(4); !bytes.Equal(got, []byte{2, 2, 0, 0}) {
		t.Errorf("post-interrupt pull = %v, want new audio then silence", got)
	}
}

func TestPlaybackBuffer_ConcurrentAppendConsume(t *testing.T) {
	b := NewPlaybackBuffer()
	const chunks = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < chunks; i++ {
			b.Append([]byte{byte(i), byte(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < chunks; i++ {
			b.Pull(2)
		}
	}()
	wg.Wait()

	// Whatever was not consumed is still there; nothing was lost or doubled.
	if rem := b.Len(); rem%2 != 0 || rem > chunks*2 {
		t.Errorf("remaining = %d, want an even count <= %d", rem, chunks*2)
	}
}
