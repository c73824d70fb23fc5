package presence

// Entry identifies a tracked member. ID is the stable identity key; Name is
// a best-effort display label that may be stale or absent.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Filter restricts which ids are tracked. A nil Filter tracks everyone.
// Immutable for the lifetime of a watch session.
type Filter map[string]struct{}

// NewFilter builds a Filter from an id list. Returns nil (track everyone)
// for an empty list.
func NewFilter(ids []string) Filter {
	if len(ids) == 0 {
		return nil
	}
	f := make(Filter, len(ids))
	for _, id := range ids {
		if id != "" {
			f[id] = struct{}{}
		}
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// Match reports whether id is relevant under this filter.
func (f Filter) Match(id string) bool {
	if f == nil {
		return true
	}
	_, ok := f[id]
	return ok
}

// IDs returns the filter's members, or nil for an unrestricted filter.
func (f Filter) IDs() []string {
	if f == nil {
		return nil
	}
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids
}
