package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"webdlp/internal/queue"
)

// Manager is the submission and query surface of the job core. It owns no
// goroutines: work handed to the queue is picked up by the worker loops.
type Manager struct {
	registry *Registry
	queue    *queue.Queue[Item]
	now      func() time.Time
	newID    func() string
}

// NewManager wires a manager to the shared registry and work queue.
func NewManager(registry *Registry, q *queue.Queue[Item]) *Manager {
	return &Manager{
		registry: registry,
		queue:    q,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit records a new queued job and hands it to the workers. The source
// URL and format are stored as given.
func (m *Manager) Submit(sourceURL string, format Format) (string, error) {
	id := m.newID()
	rec := Record{
		ID:        id,
		SourceURL: sourceURL,
		Format:    format,
		State:     StateQueued,
		CreatedAt: m.now(),
	}
	if !m.registry.Put(id, rec) {
		return "", fmt.Errorf("duplicate job id %s", id)
	}
	if err := m.queue.Enqueue(Item{ID: id, SourceURL: sourceURL, Format: format}); err != nil {
		m.registry.Delete(id)
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	log.Debug().Str("job_id", id).Str("format", string(format)).Msg("job queued")
	return id, nil
}

// Status returns the current state of a job.
func (m *Manager) Status(id string) (Status, error) {
	rec, found := m.registry.Get(id)
	if !found {
		return Status{}, ErrJobNotFound
	}
	return Status{State: rec.State, Progress: rec.Progress, Error: rec.Error}, nil
}

// Result returns the artifact name of a finished job. It does not look at
// the filesystem; checking that the file still exists is up to the caller.
func (m *Manager) Result(id string) (Record, error) {
	rec, found := m.registry.Get(id)
	if !found {
		return Record{}, ErrJobNotFound
	}
	if rec.State != StateFinished {
		return rec, ErrNotReady
	}
	if rec.Artifact == "" {
		return rec, ErrNoArtifact
	}
	return rec, nil
}

// Stats reports queue length and a per-state record count.
func (m *Manager) Stats() Stats {
	records := m.registry.List()
	stats := Stats{
		Queued: m.queue.Len(),
		Jobs:   len(records),
		States: make(map[State]int, 4),
	}
	for _, rec := range records {
		stats.States[rec.State]++
	}
	return stats
}
