// Package audio wraps the capture and playback devices: a malgo microphone
// delivering fixed-duration PCM chunks and an oto speaker pulling from a
// reader at its fixed rate.
package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio backend shared by capture devices.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the audio backend.
func NewContext() (*Context, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &Context{ctx: mctx}, nil
}

// Close releases the backend. Devices must be closed first.
func (c *Context) Close() {
	_ = c.ctx.Uninit()
	c.ctx.Free()
}
