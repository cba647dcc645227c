package reclaimer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"webdlp/internal/file"
	"webdlp/internal/job"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultMaxAge   = 10 * time.Minute
)

// Options configures a Reclaimer.
type Options struct {
	ArtifactDir string
	Interval    time.Duration
	MaxAge      time.Duration
}

// Report counts what one sweep removed.
type Report struct {
	Jobs      int
	Artifacts int
	Orphans   int
	Failures  int
}

// Reclaimer periodically evicts expired jobs and deletes stale artifacts.
// It only ever deletes whole records; it never changes a record's state.
type Reclaimer struct {
	registry *job.Registry
	dir      string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

func New(registry *job.Registry, opts Options) *Reclaimer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Reclaimer{
		registry: registry,
		dir:      opts.ArtifactDir,
		interval: opts.Interval,
		maxAge:   opts.MaxAge,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	log.Info().Dur("interval", r.interval).Dur("max_age", r.maxAge).Msg("reclaimer started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.cycle()
		select {
		case <-ctx.Done():
			log.Info().Msg("reclaimer stopped")
			return
		case <-ticker.C:
		}
	}
}

// cycle runs one sweep; a panic is logged and the loop carries on.
func (r *Reclaimer) cycle() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("reclaimer cycle failed")
		}
	}()
	report := r.Sweep()
	log.Info().
		Int("jobs", report.Jobs).
		Int("artifacts", report.Artifacts).
		Int("orphans", report.Orphans).
		Int("failures", report.Failures).
		Dur("next_in", r.interval).
		Msg("cleanup complete")
}

// Sweep performs the registry sweep followed by the filesystem sweep. Both
// are idempotent: a second call with nothing new to expire removes nothing.
func (r *Reclaimer) Sweep() Report {
	now := r.now()
	var report Report
	r.sweepRegistry(now, &report)
	r.sweepFiles(now, &report)
	return report
}

func (r *Reclaimer) expired(now, stamp time.Time) bool {
	return now.Sub(stamp) > r.maxAge
}

func (r *Reclaimer) sweepRegistry(now time.Time, report *Report) {
	for _, rec := range r.registry.List() {
		if !r.expired(now, rec.CreatedAt) {
			continue
		}
		if rec.Artifact != "" {
			// best-effort: a failed delete is retried by the filesystem sweep
			path := filepath.Join(r.dir, filepath.Base(rec.Artifact))
			removed, err := file.Remove(path)
			switch {
			case err != nil:
				report.Failures++
				log.Warn().Str("job_id", rec.ID).Str("file", rec.Artifact).Err(err).Msg("failed to delete artifact")
			case removed:
				report.Artifacts++
				log.Info().Str("job_id", rec.ID).Str("file", rec.Artifact).Msg("deleted expired artifact")
			}
		}
		if r.registry.Delete(rec.ID) {
			report.Jobs++
			log.Info().Str("job_id", rec.ID).Str("status", string(rec.State)).Msg("removed expired job")
		}
	}
}

func (r *Reclaimer) sweepFiles(now time.Time, report *Report) {
	if r.dir == "" {
		return
	}
	entries, err := file.ListFiles(r.dir)
	if err != nil {
		report.Failures++
		log.Warn().Str("dir", r.dir).Err(err).Msg("failed to list artifact dir")
		return
	}
	for _, entry := range entries {
		if !r.expired(now, entry.ModTime) {
			continue
		}
		removed, err := file.Remove(entry.Path)
		if err != nil {
			report.Failures++
			log.Warn().Str("file", entry.Name).Err(err).Msg("failed to delete orphaned file")
			continue
		}
		if removed {
			report.Orphans++
			log.Info().Str("file", entry.Name).Msg("deleted orphaned file")
		}
	}
}
