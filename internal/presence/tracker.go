package presence

import (
	"sort"
	"time"
)

// Tracker owns the authoritative online set and the id -> last-known-name
// cache. It computes diffs from applied transitions and produces outbound
// events for changes only: re-applying a transition that does not change the
// set yields no event.
//
// A Tracker is owned by a single driver goroutine and is not safe for
// concurrent use.
type Tracker struct {
	filter    Filter
	online    map[string]struct{}
	names     map[string]string
	pending   bool
	lastFlush time.Time
}

// NewTracker creates an empty tracker. A nil filter tracks everyone.
func NewTracker(filter Filter) *Tracker {
	return &Tracker{
		filter: filter,
		online: make(map[string]struct{}),
		names:  make(map[string]string),
	}
}

// ApplyOnline records that id is online. Returns an Online event only when
// the id was not already tracked as online. Ids outside the filter are
// ignored entirely.
func (t *Tracker) ApplyOnline(id, name string) (Event, bool) {
	if id == "" || !t.filter.Match(id) {
		return Event{}, false
	}
	if name != "" {
		t.names[id] = name
	}
	if _, ok := t.online[id]; ok {
		return Event{}, false
	}
	t.online[id] = struct{}{}
	t.pending = true
	return Event{Kind: KindOnline, Entry: t.entry(id)}, true
}

// ApplyOffline records that id is offline. Returns an Offline event only
// when the id was tracked as online.
func (t *Tracker) ApplyOffline(id string) (Event, bool) {
	if id == "" || !t.filter.Match(id) {
		return Event{}, false
	}
	if _, ok := t.online[id]; !ok {
		return Event{}, false
	}
	delete(t.online, id)
	t.pending = true
	return Event{Kind: KindOffline, Entry: t.entry(id)}, true
}

// ReplaceAll makes entries the authoritative online set. When the resulting
// id set differs from the current one, the set and name cache are replaced
// and a ListSnapshot event is returned; otherwise nothing changes. The
// snapshot counts as a flush: the pending flag is cleared and the flush
// clock restarts at now.
func (t *Tracker) ReplaceAll(now time.Time, entries []Entry) (Event, bool) {
	next := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == "" || !t.filter.Match(e.ID) {
			continue
		}
		next[e.ID] = struct{}{}
	}
	if sameSet(t.online, next) {
		return Event{}, false
	}
	t.online = next
	for _, e := range entries {
		if e.ID != "" && e.Name != "" && t.filter.Match(e.ID) {
			t.names[e.ID] = e.Name
		}
	}
	return t.flush(now), true
}

// FlushIfDue returns a ListSnapshot of the current online set when a change
// is pending and at least minInterval has elapsed since the last flush.
func (t *Tracker) FlushIfDue(now time.Time, minInterval time.Duration) (Event, bool) {
	if !t.pending {
		return Event{}, false
	}
	if !t.lastFlush.IsZero() && now.Sub(t.lastFlush) < minInterval {
		return Event{}, false
	}
	return t.flush(now), true
}

// flush builds the snapshot event and resets the flush bookkeeping.
func (t *Tracker) flush(now time.Time) Event {
	t.lastFlush = now
	t.pending = false
	return Event{Kind: KindListSnapshot, List: t.snapshot()}
}

// snapshot returns the online set as entries sorted by id.
func (t *Tracker) snapshot() []Entry {
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list := make([]Entry, len(ids))
	for i, id := range ids {
		list[i] = t.entry(id)
	}
	return list
}

// entry builds an Entry for id using the cached name, falling back to the
// id itself when no name was ever learned.
func (t *Tracker) entry(id string) Entry {
	name := t.names[id]
	if name == "" {
		name = id
	}
	return Entry{ID: id, Name: name}
}

// IsOnline reports whether id is currently tracked as online.
func (t *Tracker) IsOnline(id string) bool {
	_, ok := t.online[id]
	return ok
}

// OnlineIDs returns a copy of the online set's ids, sorted.
func (t *Tracker) OnlineIDs() []string {
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the size of the online set.
func (t *Tracker) Len() int {
	return len(t.online)
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
