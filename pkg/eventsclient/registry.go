package eventsclient

// Registry is the ordered list of interests the client wants bound.
// Duplicates are kept; each is bound on its own. A Registry is not safe for
// concurrent use; the Client guards its own.
type Registry struct {
	entries []Interest
}

// NewRegistry returns a registry seeded with interests, in order.
func NewRegistry(seed ...Interest) *Registry {
	r := &Registry{}
	r.entries = append(r.entries, seed...)
	return r
}

// Add appends an interest.
func (r *Registry) Add(in Interest) {
	r.entries = append(r.entries, in)
}

// Index returns the position of the first entry matching req, or -1.
func (r *Registry) Index(req Interest) int {
	for i, e := range r.entries {
		if e.Matches(req) {
			return i
		}
	}
	return -1
}

// Remove deletes the first entry matching req and reports whether one was found.
func (r *Registry) Remove(req Interest) bool {
	i := r.Index(req)
	if i < 0 {
		return false
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return true
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of the entries in insertion order.
func (r *Registry) Snapshot() []Interest {
	out := make([]Interest, len(r.entries))
	copy(out, r.entries)
	return out
}
