// Package wire converts raw push-transport frames into canonical presence
// events. The upstream protocol delivers objects, arrays, or bare strings,
// and wraps real events in "notification" envelopes whose content may itself
// be JSON-encoded a second time. All shape handling lives here so new frame
// variants are absorbed in one place.
package wire

import (
	"encoding/json"
	"log"
	"strings"
)

// Kind is the canonical presence transition carried by a frame.
type Kind int

const (
	Online Kind = iota
	Offline
)

func (k Kind) String() string {
	if k == Offline {
		return "offline"
	}
	return "online"
}

// Event is one canonical (kind, id, name?) tuple extracted from a frame.
// Name may be empty when the payload carried no display label.
type Event struct {
	Kind Kind
	ID   string
	Name string
}

// Effective type values that map to an online transition.
var onlineTypes = map[string]bool{
	"friend-online":   true,
	"friend_active":   true,
	"friend-active":   true,
	"user-online":     true,
	"friend-location": true,
}

// Effective type values that map to an offline transition.
var offlineTypes = map[string]bool{
	"friend-offline": true,
	"friend_offline": true,
	"user-offline":   true,
}

// Normalize converts one raw frame into zero or more canonical events.
// Malformed frames are dropped without error: a bad frame must never tear
// down the connection.
func Normalize(raw []byte) []Event {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("wire: dropping malformed frame: %v", err)
		return nil
	}
	return normalizeValue(v)
}

func normalizeValue(v any) []Event {
	switch data := v.(type) {
	case string:
		// Bare string frames are keep-alives or similar; not actionable.
		return nil
	case []any:
		var events []Event
		for _, item := range data {
			events = append(events, normalizeValue(item)...)
		}
		return events
	case map[string]any:
		return normalizeObject(data)
	default:
		return nil
	}
}

func normalizeObject(obj map[string]any) []Event {
	evType := strings.ToLower(firstString(obj, "type", "event"))
	payload := decodeIfJSONString(obj["content"])

	// A "notification" envelope carries the real event one level down. The
	// inner content may arrive JSON-encoded a second time; envelopes nest
	// exactly one level deep, so a single descent suffices.
	if evType == "notification" {
		if inner, ok := payload.(map[string]any); ok {
			if t := strings.ToLower(firstString(inner, "type")); t != "" {
				evType = t
			}
			if ic := decodeIfJSONString(inner["content"]); ic != nil {
				payload = ic
			}
		}
	}

	switch {
	case onlineTypes[evType]:
		return extract(payload, Online)
	case offlineTypes[evType]:
		return extract(payload, Offline)
	default:
		return nil
	}
}

// extract pulls id/name tuples out of a matched payload, which may be a
// single object or a batch array of objects.
func extract(payload any, kind Kind) []Event {
	items, ok := payload.([]any)
	if !ok {
		items = []any{payload}
	}
	var events []Event
	for _, item := range items {
		p, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := firstString(p, "userId", "userid", "id")
		if id == "" {
			// No resolvable identity; the event cannot be applied.
			continue
		}
		events = append(events, Event{Kind: kind, ID: id, Name: displayName(p)})
	}
	return events
}

// displayName resolves the best-effort name, preferring the nested user
// object's displayName over top-level aliases.
func displayName(p map[string]any) string {
	if user, ok := p["user"].(map[string]any); ok {
		if name := firstString(user, "displayName"); name != "" {
			return name
		}
	}
	return firstString(p, "displayName", "username", "name")
}

// decodeIfJSONString decodes v when it is a string that looks like a JSON
// document. On decode failure (or for non-string values) v is returned
// unchanged.
func decodeIfJSONString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return v
	}
	return decoded
}

// firstString returns the first of the given keys present in m with a
// non-empty string value.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
