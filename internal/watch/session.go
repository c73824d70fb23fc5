// Package watch contains the presence watch drivers: a push-stream
// supervisor with reconnect/backoff and pull-based drift correction, and a
// polling fallback for configurations without a push transport. Both feed
// the same tracker contract, so the consumer sees identical event shapes
// regardless of the driver.
package watch

import (
	"context"
	"time"

	"github.com/friendwatch/engine/internal/config"
	"github.com/friendwatch/engine/internal/directory"
	"github.com/friendwatch/engine/internal/presence"
)

// eventBuffer sizes the outbound channel; it is the consumer's slack before
// the bounded backpressure allowance kicks in.
const eventBuffer = 64

// runner is a driver that runs until its context is cancelled.
type runner interface {
	Run(ctx context.Context)
}

// Session runs one watch driver on a dedicated goroutine and exposes its
// outbound event channel. Per-session state (tracker, bucket, backoff) lives
// inside the driver and dies with it.
type Session struct {
	events chan presence.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPush begins a push-mode session. dir may be nil, which disables
// periodic resync (drift correction) but not the push stream itself.
func StartPush(cfg *config.Config, transport Transport, dir directory.Client, filter presence.Filter) (*Session, error) {
	events := make(chan presence.Event, eventBuffer)
	sup, err := NewSupervisor(cfg, transport, dir, filter, events)
	if err != nil {
		return nil, err
	}
	return start(sup, events), nil
}

// StartPolling begins a pull-only session.
func StartPolling(cfg *config.Config, dir directory.Client, filter presence.Filter) *Session {
	events := make(chan presence.Event, eventBuffer)
	return start(NewPoller(cfg, dir, filter, events), events)
}

func start(r runner, events chan presence.Event) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		r.Run(ctx)
	}()
	return s
}

// Events is the ordered outbound channel consumed by the presentation layer.
func (s *Session) Events() <-chan presence.Event {
	return s.events
}

// Stop signals the driver and waits up to timeout for it to exit. Returns
// false when the driver was abandoned still running; it holds no shared
// state, so abandoning it cannot corrupt anything.
func (s *Session) Stop(timeout time.Duration) bool {
	s.cancel()
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
