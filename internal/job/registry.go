package job

import "sync"

// Registry is the authoritative in-memory store of job records. Every method
// holds the lock only for the duration of a map operation, and records are
// copied across the boundary so callers never alias stored state.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Put stores rec under id. It refuses to replace an existing record and
// reports whether the record was stored.
func (r *Registry) Put(id string, rec Record) bool {
	rec.ID = id
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[id]; exists {
		return false
	}
	r.records[id] = rec
	return true
}

// Get returns a copy of the record stored under id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	rec, found := r.records[id]
	r.mu.RUnlock()
	return rec, found
}

// Update merges the non-nil fields of p into the record under id and returns
// the merged copy. Updating an unknown id is a no-op.
func (r *Registry) Update(id string, p Patch) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, found := r.records[id]
	if !found {
		return Record{}, false
	}
	if p.State != nil {
		rec.State = *p.State
	}
	if p.Progress != nil {
		rec.Progress = *p.Progress
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}
	if p.Artifact != nil {
		rec.Artifact = *p.Artifact
	}
	r.records[id] = rec
	return rec, true
}

// Delete removes the record under id, reporting whether one existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.records[id]; !found {
		return false
	}
	delete(r.records, id)
	return true
}

// List returns a snapshot of all records in no particular order.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of stored records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
