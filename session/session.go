// Package session owns the live session: the lifecycle state machine, the
// single outbound write path, inbound frame dispatch, playback buffering,
// and tool-call round trips.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openmic/gemlive/config"
	"github.com/openmic/gemlive/functions"
	"github.com/openmic/gemlive/protocol"
)

const (
	writeBufferSize = 256
	toolBufferSize  = 16

	// interruptRecovery bounds how long the session stays Interrupted when
	// the server goes quiet after cutting a turn off.
	interruptRecovery = 5 * time.Second

	bufferReportPeriod = 2 * time.Second
)

// Transport is the persistent, ordered, message-framed connection. Close must
// unblock a pending Receive.
type Transport interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Microphone delivers fixed-duration PCM chunks from its own execution
// context. The callback must not block.
type Microphone interface {
	Start(onChunk func(pcm []byte)) error
	Close() error
}

// Speaker pulls PCM from src at its fixed consumption rate until closed.
type Speaker interface {
	Start(src io.Reader) error
	Close() error
}

// FrameGrabber produces one compressed image frame per call.
type FrameGrabber interface {
	Frame() ([]byte, error)
}

// Devices are the optional capture/playback endpoints. Any of them may be
// nil; the corresponding producer or sink is then disabled.
type Devices struct {
	Mic     Microphone
	Speaker Speaker
	Grabber FrameGrabber
}

// Controller supervises one session end to end. All outbound frames funnel
// through a single buffered channel drained by one write pump, so producers
// never interleave writes on the transport.
type Controller struct {
	ID       string
	Playback *PlaybackBuffer

	cfg       *config.Config
	transport Transport
	funcs     *functions.Registry
	registry  *Registry

	mic     Microphone
	speaker Speaker
	grabber FrameGrabber

	// stdin by default; swapped out in tests.
	input io.Reader

	writeChan chan protocol.ClientFrame
	toolChan  chan []protocol.FunctionCall
	closeChan chan struct{}

	mu             sync.Mutex
	state          State
	pendingText    []string
	interruptTimer *time.Timer
	initialTimer   *time.Timer
	closed         bool
	fatalErr       error

	wg sync.WaitGroup
}

// New wires a controller. The transport must already be connected; the
// controller takes ownership of it and of the devices.
func New(cfg *config.Config, t Transport, funcs *functions.Registry, reg *Registry, dev Devices) *Controller {
	if funcs == nil {
		funcs = functions.NewRegistry()
	}
	return &Controller{
		ID:        uuid.New().String(),
		Playback:  NewPlaybackBuffer(),
		cfg:       cfg,
		transport: t,
		funcs:     funcs,
		registry:  reg,
		mic:       dev.Mic,
		speaker:   dev.Speaker,
		grabber:   dev.Grabber,
		input:     os.Stdin,
		writeChan: make(chan protocol.ClientFrame, writeBufferSize),
		toolChan:  make(chan []protocol.FunctionCall, toolBufferSize),
		closeChan: make(chan struct{}),
		state:     StateIdle,
	}
}

// Run drives the session until it reaches Closed: it sends the setup frame,
// starts every worker, and blocks. It returns the fatal error that ended the
// session, or nil for a user-initiated or clean shutdown.
func (c *Controller) Run(ctx context.Context) error {
	c.registry.Add(ctx, c.ID, c.cfg.Model)
	c.setState(StateConnecting)

	c.wg.Add(3)
	go c.writePump()
	go c.receiveLoop()
	go c.toolPump(ctx)

	// The line reader blocks on stdin and cannot be unblocked portably, so
	// it is not joined; it checks the close flag before acting on a line.
	go c.readLines()

	c.mu.Lock()
	speaker := c.speaker
	c.mu.Unlock()
	if speaker != nil {
		if err := speaker.Start(c.Playback); err != nil {
			if c.cfg.AudioOutputSet {
				// fatal closes closeChan; the rest of Run falls through to
				// the common epilogue.
				c.fatal(fmt.Errorf("failed to open audio output: %w", err))
			} else {
				slog.Warn("audio output unavailable, disabled", "error", err)
				c.mu.Lock()
				c.speaker = nil
				c.mu.Unlock()
			}
		}
	}

	if c.grabber != nil && c.cfg.ScreenCaptureFPS > 0 {
		c.wg.Add(1)
		go c.captureLoop()
	}
	c.wg.Add(1)
	go c.reportLoop()

	c.enqueue(protocol.NewSetup(protocol.SetupOptions{
		Model:             c.cfg.Model,
		AudioOutput:       c.cfg.AudioOutput,
		TextOutput:        c.cfg.TextOutput,
		Voice:             c.cfg.Voice,
		SystemInstruction: c.cfg.SystemInstruction,
		Search:            c.cfg.Search,
		CodeExecution:     c.cfg.CodeExecution,
		Declarations:      c.funcs.Declarations(),
	}))
	c.setState(StateAwaitingSetupAck)

	select {
	case <-ctx.Done():
		c.shutdown(nil)
	case <-c.closeChan:
	}
	c.wg.Wait()

	c.setState(StateClosed)
	c.registry.Remove(context.Background(), c.ID)
	return c.err()
}

// Close stops the session from outside. Idempotent.
func (c *Controller) Close() {
	c.shutdown(nil)
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendText queues a user text turn. Before the session is Ready the text is
// held back and flushed, in submission order, once the setup ack arrives.
func (c *Controller) SendText(text string) {
	c.mu.Lock()
	if c.state < StateReady {
		c.pendingText = append(c.pendingText, text)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	fmt.Printf("  -> %s\n", text)
	c.enqueue(protocol.NewClientText(text))
}

// enqueue hands a frame to the write pump, preserving submission order.
// Blocks under backpressure rather than reorder or drop.
func (c *Controller) enqueue(f protocol.ClientFrame) {
	select {
	case c.writeChan <- f:
	case <-c.closeChan:
	}
}

// enqueueMedia is the handoff for realtime producers. Media is disposable:
// when the queue is full the chunk is dropped so a blocked device callback
// can never stall capture.
func (c *Controller) enqueueMedia(f protocol.ClientFrame) {
	select {
	case c.writeChan <- f:
	case <-c.closeChan:
	default:
		slog.Warn("outbound queue full, dropping media chunk")
	}
}

// writePump is the only goroutine that touches the transport's send side.
func (c *Controller) writePump() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeChan:
			return
		case f := <-c.writeChan:
			data, err := protocol.Marshal(f)
			if err != nil {
				// A frame that cannot be serialized cannot be un-sent from
				// the conversation's point of view; tear down.
				c.fatal(err)
				return
			}
			if err := c.transport.Send(data); err != nil {
				if !c.isClosed() {
					c.fatal(err)
				}
				return
			}
		}
	}
}

func (c *Controller) receiveLoop() {
	defer c.wg.Done()
	for {
		data, err := c.transport.Receive()
		if err != nil {
			if !c.isClosed() {
				c.fatal(fmt.Errorf("connection lost: %w", err))
			}
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping inbound frame", "error", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Controller) dispatch(frame protocol.ServerFrame) {
	switch f := frame.(type) {
	case protocol.SetupComplete:
		c.onSetupComplete()
	case *protocol.ServerContent:
		c.onServerContent(f)
	case *protocol.ToolCall:
		select {
		case c.toolChan <- f.Calls:
		case <-c.closeChan:
		}
	case *protocol.ServerError:
		slog.Warn("server error", "code", f.Code, "message", f.Message)
	}
}

func (c *Controller) onSetupComplete() {
	c.mu.Lock()
	if c.state != StateAwaitingSetupAck {
		c.mu.Unlock()
		return
	}
	if c.cfg.InitialMessage != "" && c.initialTimer == nil {
		msg := c.cfg.InitialMessage
		c.initialTimer = time.AfterFunc(c.cfg.InitialMessageDelay, func() {
			c.SendText(msg)
		})
	}
	c.mu.Unlock()

	fmt.Println("Ready: say something to Gemini")

	// Drain the pre-ready queue before publishing Ready: a line submitted
	// while the flush is in flight still joins the queue and keeps its
	// place behind everything submitted before it.
	for {
		c.mu.Lock()
		pending := c.pendingText
		c.pendingText = nil
		if len(pending) == 0 {
			if !c.closed {
				c.state = StateReady
			}
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()
		for _, text := range pending {
			fmt.Printf("  -> %s\n", text)
			c.enqueue(protocol.NewClientText(text))
		}
	}
	c.registry.SetState(context.Background(), c.ID, StateReady)

	c.mu.Lock()
	mic := c.mic
	c.mu.Unlock()
	if mic != nil && c.cfg.AudioInput {
		mime := protocol.AudioMIME(c.cfg.MicSampleRate)
		err := mic.Start(func(pcm []byte) {
			c.enqueueMedia(protocol.NewRealtimeMedia(mime, pcm))
		})
		if err != nil {
			if c.cfg.AudioInputSet {
				c.fatal(fmt.Errorf("failed to open microphone: %w", err))
				return
			}
			slog.Warn("microphone unavailable, audio input disabled", "error", err)
			c.mu.Lock()
			c.mic = nil
			c.mu.Unlock()
		}
	}
}

func (c *Controller) onServerContent(sc *protocol.ServerContent) {
	if sc.Interrupted {
		slog.Info("interrupted by server")
		// Clear first, and skip any media riding in the same frame: nothing
		// from the discarded turn may reach the speaker.
		c.Playback.Clear()
		c.enterInterrupted()
		return
	}
	c.leaveInterrupted()

	for _, part := range sc.Parts {
		if part.Text != "" {
			fmt.Printf("  <- %s\n", part.Text)
		}
		if part.ExecutableCode {
			// The service withholds executableCode content when AUDIO output
			// is selected; only the marker arrives.
			slog.Debug("executable code part")
		}
		if part.InlineData != nil {
			c.handleMedia(part.InlineData)
		}
	}
	for _, g := range sc.Grounding {
		fmt.Printf("  <- %s (%s)\n", g.Title, g.URI)
	}
	if sc.TurnComplete {
		slog.Debug("turn complete")
	}
}

func (c *Controller) handleMedia(blob *protocol.InlineBlob) {
	mimeType, rate, ok := protocol.ParseAudioMIME(blob.MIMEType)
	if !ok || mimeType != "audio/pcm" || rate != c.cfg.SpeakerSampleRate {
		slog.Warn("unsupported mime type or sample rate, chunk dropped",
			"mimeType", blob.MIMEType)
		return
	}
	if !c.cfg.AudioOutput {
		return
	}
	c.Playback.Append(blob.Data)
}

func (c *Controller) enterInterrupted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	c.state = StateInterrupted
	c.interruptTimer = time.AfterFunc(interruptRecovery, c.leaveInterrupted)
}

func (c *Controller) leaveInterrupted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInterrupted {
		return
	}
	c.state = StateReady
	if c.interruptTimer != nil {
		c.interruptTimer.Stop()
		c.interruptTimer = nil
	}
}

// toolPump completes tool-call batches strictly in arrival order; the
// response for a batch is queued before the next batch is started, so ids
// always match their originating batch.
func (c *Controller) toolPump(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeChan:
			return
		case calls := <-c.toolChan:
			results := c.funcs.CallBatch(ctx, calls)
			c.enqueue(protocol.NewToolResponse(results))
		}
	}
}

func (c *Controller) readLines() {
	scanner := bufio.NewScanner(c.input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.isClosed() {
			return
		}
		c.SendText(line)
	}
}

func (c *Controller) captureLoop() {
	defer c.wg.Done()
	period := time.Duration(float64(time.Second) / c.cfg.ScreenCaptureFPS)
	slog.Info("screen capture enabled", "fps", c.cfg.ScreenCaptureFPS)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			if !c.isLive() {
				continue
			}
			frame, err := c.grabber.Frame()
			if err != nil {
				// Device errors disable only this producer.
				slog.Warn("screen capture failed, disabling", "error", err)
				return
			}
			c.enqueueMedia(protocol.NewRealtimeMedia(protocol.ImageMIME, frame))
		}
	}
}

func (c *Controller) reportLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(bufferReportPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			if n := c.Playback.Len(); n > 0 {
				secs := float64(n) / float64(c.cfg.SpeakerSampleRate*c.cfg.Channels*2)
				slog.Debug("playback buffer", "seconds", fmt.Sprintf("%.2f", secs))
			}
		}
	}
}

// shutdown winds the session down exactly once: workers first (closeChan),
// devices second, transport last. Safe on every exit path.
func (c *Controller) shutdown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosing
	if cause != nil && c.fatalErr == nil {
		c.fatalErr = cause
	}
	if c.interruptTimer != nil {
		c.interruptTimer.Stop()
		c.interruptTimer = nil
	}
	if c.initialTimer != nil {
		c.initialTimer.Stop()
		c.initialTimer = nil
	}
	mic, speaker := c.mic, c.speaker
	c.mu.Unlock()

	c.registry.SetState(context.Background(), c.ID, StateClosing)

	close(c.closeChan)
	if mic != nil {
		_ = mic.Close()
	}
	if speaker != nil {
		_ = speaker.Close()
	}
	// Closing the transport unblocks the receive loop.
	_ = c.transport.Close()
}

func (c *Controller) fatal(err error) {
	slog.Error("fatal session error", "error", err)
	c.shutdown(err)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// isLive reports whether producers may emit media.
func (c *Controller) isLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady || c.state == StateInterrupted
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.closed && s != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.registry.SetState(context.Background(), c.ID, s)
}

func (c *Controller) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalErr
}
