package grid_world

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"boxworld/models"
)

// Renderer consumes frames of an episode. Renderers must not retain the snapshot's Layout
// for mutation; it is shared with the environment.
type Renderer interface {
	Render(snap models.Snapshot)
}

// NopRenderer discards every frame, for headless training and tests.
type NopRenderer struct{}

func (NopRenderer) Render(models.Snapshot) {}

// ConsoleRenderer draws each frame as text and then sleeps for the pacing delay.
// Once stopped it draws nothing; stopping does not affect the simulation.
type ConsoleRenderer struct {
	out     io.Writer
	delay   time.Duration
	colored bool
	running atomic.Bool
}

func NewConsoleRenderer(out io.Writer, delay time.Duration, colored bool) *ConsoleRenderer {
	cr := &ConsoleRenderer{
		out:     out,
		delay:   delay,
		colored: colored,
	}
	cr.running.Store(true)
	return cr
}

func (cr *ConsoleRenderer) Render(snap models.Snapshot) {
	if !cr.running.Load() {
		return
	}
	models.FprintGrid(cr.out, &snap, cr.colored)
	if cr.delay > 0 {
		time.Sleep(cr.delay)
	}
}

// Stop disables drawing. It is safe to call from the keyboard observer's goroutine.
func (cr *ConsoleRenderer) Stop() {
	cr.running.Store(false)
}

// ChannelRenderer publishes frames to a consumer such as the web server. Frames are dropped
// when the consumer is not ready, so a slow or absent viewer never stalls training.
type ChannelRenderer struct {
	ctx    context.Context
	frames chan models.Snapshot
	delay  time.Duration
}

func NewChannelRenderer(ctx context.Context, delay time.Duration) *ChannelRenderer {
	return &ChannelRenderer{
		ctx:    ctx,
		frames: make(chan models.Snapshot),
		delay:  delay,
	}
}

// Frames returns the channel of published snapshots. It is closed by Close.
func (cr *ChannelRenderer) Frames() <-chan models.Snapshot {
	return cr.frames
}

func (cr *ChannelRenderer) Render(snap models.Snapshot) {
	select {
	case cr.frames <- snap:
	case <-cr.ctx.Done():
		return
	default:
	}
	if cr.delay > 0 {
		select {
		case <-time.After(cr.delay):
		case <-cr.ctx.Done():
		}
	}
}

func (cr *ChannelRenderer) Close() error {
	close(cr.frames)
	return nil
}
