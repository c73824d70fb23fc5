package presence

import (
	"encoding/json"
	"time"
)

// EventKind classifies outbound presence events.
type EventKind int

const (
	KindOnline       EventKind = iota // a tracked id transitioned to online
	KindOffline                       // a tracked id transitioned to offline
	KindListSnapshot                  // full sorted snapshot of the online set
	KindHeartbeat                     // driver liveness signal
	KindError                         // absorbed failure, surfaced for observability
)

var kindNames = map[EventKind]string{
	KindOnline:       "online",
	KindOffline:      "offline",
	KindListSnapshot: "list_snapshot",
	KindHeartbeat:    "heartbeat",
	KindError:        "error",
}

var kindFromName = map[string]EventKind{
	"online":        KindOnline,
	"offline":       KindOffline,
	"list_snapshot": KindListSnapshot,
	"heartbeat":     KindHeartbeat,
	"error":         KindError,
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Event is the single artifact delivered to the consumer channel. Exactly
// one of the payload fields is meaningful, selected by Kind: Entry for
// online/offline, List for snapshots, At for heartbeats, Message for errors.
type Event struct {
	Kind    EventKind `json:"kind"`
	Entry   Entry     `json:"entry,omitempty"`
	List    []Entry   `json:"list,omitempty"`
	At      time.Time `json:"at,omitempty"`
	Message string    `json:"message,omitempty"`
}

// HeartbeatEvent builds a liveness event for the given instant.
func HeartbeatEvent(at time.Time) Event {
	return Event{Kind: KindHeartbeat, At: at}
}

// ErrorEvent builds an observability event for an absorbed failure.
func ErrorEvent(msg string) Event {
	return Event{Kind: KindError, Message: msg}
}
