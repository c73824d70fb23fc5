package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendwatch/engine/internal/presence"
)

func newTestPoller(dir *fakeDirectory) (*Poller, chan presence.Event) {
	cfg := testConfig()
	events := make(chan presence.Event, 64)
	return NewPoller(cfg, dir, nil, events), events
}

func drain(ch chan presence.Event) []presence.Event {
	var got []presence.Event
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
		default:
			return got
		}
	}
}

func TestPollerFirstRunEstablishesBaselineSilently(t *testing.T) {
	dir := &fakeDirectory{entries: []presence.Entry{
		{ID: "usr_1", Name: "Ada"},
		{ID: "usr_2", Name: "Bea"},
	}}
	p, events := newTestPoller(dir)

	p.pollOnce(context.Background())
	got := drain(events)

	// Everyone already online at startup appears only in the snapshot.
	if n := countKind(got, presence.KindOnline); n != 0 {
		t.Errorf("first poll produced %d online events, want 0", n)
	}
	if n := countKind(got, presence.KindHeartbeat); n != 1 {
		t.Errorf("heartbeats = %d, want 1", n)
	}
	snaps := countKind(got, presence.KindListSnapshot)
	if snaps != 1 {
		t.Fatalf("snapshots = %d, want 1", snaps)
	}
	if got[0].Kind != presence.KindListSnapshot || len(got[0].List) != 2 {
		t.Errorf("baseline snapshot = %+v, want 2 entries first", got[0])
	}
}

func TestPollerEmptyFirstPoll(t *testing.T) {
	dir := &fakeDirectory{}
	p, events := newTestPoller(dir)

	p.pollOnce(context.Background())
	got := drain(events)

	// Nothing online and nothing changed: just the heartbeat.
	if len(got) != 1 || got[0].Kind != presence.KindHeartbeat {
		t.Errorf("events = %+v, want single heartbeat", got)
	}
}

func TestPollerDiffsAcrossPolls(t *testing.T) {
	dir := &fakeDirectory{entries: []presence.Entry{{ID: "usr_1", Name: "Ada"}}}
	p, events := newTestPoller(dir)

	p.pollOnce(context.Background())
	drain(events)

	// usr_3 appears.
	dir.set([]presence.Entry{{ID: "usr_1", Name: "Ada"}, {ID: "usr_3", Name: "Cyd"}}, nil)
	p.pollOnce(context.Background())
	got := drain(events)
	if n := countKind(got, presence.KindOnline); n != 1 {
		t.Fatalf("online events = %d, want 1", n)
	}
	if got[0].Entry.ID != "usr_3" {
		t.Errorf("online entry = %+v, want usr_3", got[0].Entry)
	}

	// usr_1 disappears.
	dir.set([]presence.Entry{{ID: "usr_3", Name: "Cyd"}}, nil)
	p.pollOnce(context.Background())
	got = drain(events)
	if n := countKind(got, presence.KindOffline); n != 1 {
		t.Fatalf("offline events = %d, want 1", n)
	}
	if got[0].Entry.ID != "usr_1" || got[0].Entry.Name != "Ada" {
		t.Errorf("offline entry = %+v, want usr_1/Ada", got[0].Entry)
	}
}

func TestPollerUnchangedPollEmitsOnlyHeartbeat(t *testing.T) {
	dir := &fakeDirectory{entries: []presence.Entry{{ID: "usr_1", Name: "Ada"}}}
	p, events := newTestPoller(dir)

	p.pollOnce(context.Background())
	drain(events)

	p.pollOnce(context.Background())
	got := drain(events)
	if len(got) != 1 || got[0].Kind != presence.KindHeartbeat {
		t.Errorf("unchanged poll events = %+v, want single heartbeat", got)
	}
}

func TestPollerFetchFailureEmitsError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("503 from upstream")}
	p, events := newTestPoller(dir)

	p.pollOnce(context.Background())
	got := drain(events)
	if len(got) != 1 || got[0].Kind != presence.KindError {
		t.Fatalf("events = %+v, want single error event", got)
	}
	if got[0].Message == "" {
		t.Error("error event has empty message")
	}

	// Recovery: the failed poll did not corrupt the baseline logic.
	dir.set([]presence.Entry{{ID: "usr_1", Name: "Ada"}}, nil)
	p.pollOnce(context.Background())
	got = drain(events)
	if n := countKind(got, presence.KindOnline); n != 0 {
		t.Errorf("post-recovery first success produced %d online events, want 0 (still baseline)", n)
	}
	if n := countKind(got, presence.KindListSnapshot); n != 1 {
		t.Errorf("snapshots = %d, want 1", n)
	}
}

func TestPollerFlushSpacingHonored(t *testing.T) {
	dir := &fakeDirectory{entries: []presence.Entry{{ID: "usr_1", Name: "Ada"}}}
	p, events := newTestPoller(dir)
	p.cfg.Watch.ListFlushInterval = time.Hour

	p.pollOnce(context.Background())
	got := drain(events)
	// First flush is always due (no prior flush), baseline snapshot emitted.
	if n := countKind(got, presence.KindListSnapshot); n != 1 {
		t.Fatalf("snapshots = %d, want 1", n)
	}

	// A change inside the flush interval produces the transition event but
	// defers the snapshot.
	dir.set([]presence.Entry{{ID: "usr_1", Name: "Ada"}, {ID: "usr_2", Name: "Bea"}}, nil)
	p.pollOnce(context.Background())
	got = drain(events)
	if n := countKind(got, presence.KindOnline); n != 1 {
		t.Errorf("online events = %d, want 1", n)
	}
	if n := countKind(got, presence.KindListSnapshot); n != 0 {
		t.Errorf("snapshot inside flush interval = %d, want 0", n)
	}
}
