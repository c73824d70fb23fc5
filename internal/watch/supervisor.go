package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/friendwatch/engine/internal/config"
	"github.com/friendwatch/engine/internal/directory"
	"github.com/friendwatch/engine/internal/presence"
	"github.com/friendwatch/engine/internal/ratelimit"
	"github.com/friendwatch/engine/internal/wire"
)

// connState is the supervisor's position in the connection lifecycle. The
// reconnect loop is an explicit state machine so transition coverage can be
// tested with an injected fake transport.
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateClosedClean
	stateClosedError
	stateBackoffWait
	stateStopped
)

var connStateNames = map[connState]string{
	stateIdle:        "idle",
	stateConnecting:  "connecting",
	stateConnected:   "connected",
	stateClosedClean: "closed_clean",
	stateClosedError: "closed_error",
	stateBackoffWait: "backoff_wait",
	stateStopped:     "stopped",
}

func (s connState) String() string {
	if name, ok := connStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Supervisor owns the push transport lifecycle: connect, pump frames through
// the normalizer into the tracker, reconnect with capped exponential backoff
// plus jitter, and reconcile drift against the directory on a timer. It runs
// on one dedicated goroutine; all of its state is owned by that goroutine.
type Supervisor struct {
	cfg       *config.Config
	transport Transport
	dir       directory.Client // nil disables resync
	filter    presence.Filter
	tracker   *presence.Tracker
	bucket    *ratelimit.Bucket
	emitter   *emitter
	health    *linkHealth
	attempt   int
}

// NewSupervisor wires a push-mode driver. Returns an error when no push URL
// is configured; that failure is fatal to push mode only, not to the caller.
func NewSupervisor(cfg *config.Config, transport Transport, dir directory.Client, filter presence.Filter, events chan<- presence.Event) (*Supervisor, error) {
	if cfg.Push.URL == "" {
		return nil, errors.New("watch: push url not configured")
	}
	return &Supervisor{
		cfg:       cfg,
		transport: transport,
		dir:       dir,
		filter:    filter,
		tracker:   presence.NewTracker(filter),
		bucket:    ratelimit.New(cfg.Watch.NotifyRatePerMin),
		emitter:   newEmitter(events),
		health:    newLinkHealth("push", 3),
	}, nil
}

// Run drives the state machine until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	state := stateIdle
	var conn Conn

	for {
		switch state {
		case stateIdle:
			state = stateConnecting

		case stateConnecting:
			log.Printf("watch: connecting to %s", maskURL(s.cfg.Push.URL))
			c, err := s.transport.Connect(ctx, s.cfg.Push.URL, s.headers())
			if err != nil {
				if ctx.Err() != nil {
					state = stateStopped
					continue
				}
				log.Printf("watch: connect failed: %v", err)
				s.health.recordFailure(err)
				if status, changed := s.health.statusChanged(); changed && status == statusFailed {
					s.emitter.emit(presence.ErrorEvent(fmt.Sprintf("push link %s: %s", status, s.health.lastError())))
				}
				state = stateBackoffWait
				continue
			}
			conn = c
			s.attempt = 0
			s.health.recordSuccess()
			if status, changed := s.health.statusChanged(); changed {
				log.Printf("watch: push link %s", status)
			}
			log.Printf("watch: connected")
			state = stateConnected

		case stateConnected:
			// The push stream only reports changes; reconcile the
			// pre-existing set before trusting incremental events.
			s.resync(ctx)
			state = s.pump(ctx, conn)
			conn = nil

		case stateClosedClean, stateClosedError:
			if ctx.Err() != nil {
				state = stateStopped
				continue
			}
			state = stateBackoffWait

		case stateBackoffWait:
			delay := s.nextDelay()
			log.Printf("watch: reconnecting in %s (attempt %d)", delay.Round(time.Millisecond), s.attempt)
			if !sleepWithStop(ctx, delay) {
				state = stateStopped
				continue
			}
			state = stateConnecting

		case stateStopped:
			log.Printf("watch: supervisor stopped")
			return
		}
	}
}

// pump reads frames from conn until the connection ends or ctx is
// cancelled, and returns the resulting state.
func (s *Supervisor) pump(ctx context.Context, conn Conn) connState {
	defer conn.Close()

	frames := make(chan []byte, 16)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				select {
				case errs <- err:
				case <-done:
				}
				return
			}
			select {
			case frames <- data:
			case <-done:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(s.cfg.Push.PingInterval)
	defer pingTicker.Stop()
	resyncTicker := time.NewTicker(s.cfg.Watch.ResyncInterval)
	defer resyncTicker.Stop()
	flushTicker := time.NewTicker(s.cfg.Watch.ListFlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return stateStopped

		case err := <-errs:
			if errors.Is(err, io.EOF) {
				log.Printf("watch: connection closed by peer")
				return stateClosedClean
			}
			log.Printf("watch: connection lost: %v", err)
			s.emitter.emit(presence.ErrorEvent(fmt.Sprintf("push connection lost: %v", err)))
			return stateClosedError

		case data := <-frames:
			s.handleFrame(data)

		case <-pingTicker.C:
			if err := conn.Ping(); err != nil {
				log.Printf("watch: ping failed: %v", err)
				s.emitter.emit(presence.ErrorEvent(fmt.Sprintf("push ping failed: %v", err)))
				return stateClosedError
			}

		case <-resyncTicker.C:
			s.resync(ctx)

		case <-flushTicker.C:
			s.flush(time.Now())
		}
	}
}

// handleFrame normalizes one frame, applies the canonical events to the
// tracker, and forwards resulting transitions. Online notifications are
// interactive and therefore rate limited; a denied notification still
// updates the tracked set.
func (s *Supervisor) handleFrame(data []byte) {
	for _, ev := range wire.Normalize(data) {
		switch ev.Kind {
		case wire.Online:
			out, changed := s.tracker.ApplyOnline(ev.ID, ev.Name)
			if !changed {
				continue
			}
			if s.bucket.Allow(1) {
				log.Printf("watch: %s came online", out.Entry.Name)
				s.emitter.emit(out)
			} else {
				log.Printf("watch: online notification rate limited: %s", ev.ID)
			}
		case wire.Offline:
			if out, changed := s.tracker.ApplyOffline(ev.ID); changed {
				log.Printf("watch: %s went offline", out.Entry.Name)
				s.emitter.emit(out)
			}
		}
	}
	now := time.Now()
	s.emitter.emit(presence.HeartbeatEvent(now))
	s.flush(now)
}

func (s *Supervisor) flush(now time.Time) {
	if ev, ok := s.tracker.FlushIfDue(now, s.cfg.Watch.ListFlushInterval); ok {
		s.emitter.emit(ev)
	}
}

// resync pulls the authoritative online set and replaces the tracked set
// when they diverge. This is the correctness backstop against missed or
// malformed push frames. Failures are logged and left for the next tick.
func (s *Supervisor) resync(ctx context.Context) {
	if s.dir == nil {
		return
	}
	entries, err := s.dir.FetchOnlineSet(ctx, s.filter)
	if err != nil {
		log.Printf("watch: resync failed: %v", err)
		return
	}
	if ev, ok := s.tracker.ReplaceAll(time.Now(), entries); ok {
		log.Printf("watch: resync corrected drift (online=%d)", len(ev.List))
		s.emitter.emit(ev)
	}
}

// nextDelay computes the jittered backoff for the current attempt and
// advances the attempt counter.
func (s *Supervisor) nextDelay() time.Duration {
	d := backoffDelay(s.cfg.Backoff.Initial, s.cfg.Backoff.Max, s.attempt)
	s.attempt++
	return applyJitter(d, s.cfg.Backoff.JitterRatio)
}

func (s *Supervisor) headers() http.Header {
	h := make(http.Header, len(s.cfg.Push.Headers)+1)
	for k, v := range s.cfg.Push.Headers {
		h.Set(k, v)
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", s.cfg.Directory.UserAgent)
	}
	return h
}
