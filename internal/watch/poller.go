package watch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/friendwatch/engine/internal/config"
	"github.com/friendwatch/engine/internal/directory"
	"github.com/friendwatch/engine/internal/presence"
)

// Poller is the pull-only driver used when no push transport is configured.
// It fetches the online set on a fixed interval and applies per-id diffs
// through the tracker, so it produces the same event shapes as the push
// path. The first iteration only establishes the baseline: notifying about
// everyone who was already online at startup would be noise.
type Poller struct {
	cfg      *config.Config
	dir      directory.Client
	filter   presence.Filter
	tracker  *presence.Tracker
	emitter  *emitter
	health   *linkHealth
	firstRun bool
}

// NewPoller wires a polling-mode driver.
func NewPoller(cfg *config.Config, dir directory.Client, filter presence.Filter, events chan<- presence.Event) *Poller {
	return &Poller{
		cfg:      cfg,
		dir:      dir,
		filter:   filter,
		tracker:  presence.NewTracker(filter),
		emitter:  newEmitter(events),
		health:   newLinkHealth("pull", 3),
		firstRun: true,
	}
}

// Run polls until ctx is cancelled. Pull failures emit an Error event and
// are retried on the next tick; the interval does not back off because a
// missed poll only delays the next snapshot.
func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.Watch.PollInterval
	log.Printf("watch: poller started (interval=%s)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("watch: poller stopped")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	entries, err := p.dir.FetchOnlineSet(ctx, p.filter)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("watch: poll failed: %v", err)
		p.health.recordFailure(err)
		if status, changed := p.health.statusChanged(); changed {
			log.Printf("watch: pull link %s", status)
		}
		p.emitter.emit(presence.ErrorEvent(fmt.Sprintf("poll failed: %v", err)))
		return
	}
	p.health.recordSuccess()
	if status, changed := p.health.statusChanged(); changed {
		log.Printf("watch: pull link %s", status)
	}

	now := time.Now()
	fetched := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		fetched[e.ID] = struct{}{}
	}

	// Ids gone since the previous pull.
	for _, id := range p.tracker.OnlineIDs() {
		if _, ok := fetched[id]; ok {
			continue
		}
		if ev, changed := p.tracker.ApplyOffline(id); changed {
			log.Printf("watch: %s went offline", ev.Entry.Name)
			p.emitter.emit(ev)
		}
	}

	// Ids new since the previous pull. On the first run the baseline is
	// established silently.
	for _, e := range entries {
		ev, changed := p.tracker.ApplyOnline(e.ID, e.Name)
		if !changed || p.firstRun {
			continue
		}
		log.Printf("watch: %s came online", ev.Entry.Name)
		p.emitter.emit(ev)
	}
	p.firstRun = false

	if ev, ok := p.tracker.FlushIfDue(now, p.cfg.Watch.ListFlushInterval); ok {
		p.emitter.emit(ev)
	}
	p.emitter.emit(presence.HeartbeatEvent(now))
}
