package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"webdlp/internal/file"
	"webdlp/internal/job"
	"webdlp/internal/queue"
	"webdlp/internal/ytdlp"
)

const (
	msgToolFailed       = "download failed"
	msgArtifactMissing  = "artifact not produced"
	idleAfterQueueError = time.Second
)

var errArtifactMissing = errors.New(msgArtifactMissing)

// Converter produces the artifact for one request. Implementations block
// until the conversion has finished or failed.
type Converter interface {
	Convert(ctx context.Context, req ytdlp.Request) error
}

// Options configures a Pool.
type Options struct {
	Workers     int
	ArtifactDir string
}

// Pool runs a fixed number of worker loops draining one queue.
type Pool struct {
	registry    *job.Registry
	queue       *queue.Queue[job.Item]
	converter   Converter
	artifactDir string
	workers     int
	wg          sync.WaitGroup
}

// NewPool creates a pool; call Start to launch its loops.
func NewPool(registry *job.Registry, q *queue.Queue[job.Item], converter Converter, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pool{
		registry:    registry,
		queue:       q,
		converter:   converter,
		artifactDir: opts.ArtifactDir,
		workers:     opts.Workers,
	}
}

// Start launches the worker loops. They stop when ctx is cancelled or the
// queue is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			p.run(ctx, workerID)
		}(i + 1)
	}
	log.Info().Int("workers", p.workers).Str("dir", p.artifactDir).Msg("workers started")
}

// WaitAll blocks until all worker loops return or the context is done.
// Returns true if all workers finished, false if timed out.
func (p *Pool) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pool) run(ctx context.Context, workerID int) {
	logger := log.With().Int("worker", workerID).Logger()
	logger.Debug().Msg("worker waiting for jobs")
	for {
		item, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				logger.Debug().Msg("worker stopped")
				return
			}
			logger.Error().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleAfterQueueError):
			}
			continue
		}
		logger.Info().Str("job_id", item.ID).Msg("worker received job")
		p.Process(ctx, item)
	}
}

// Process runs one job to a terminal state. Any error or panic is recorded
// on the job itself and never escapes to the caller.
func (p *Pool) Process(ctx context.Context, item job.Item) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", item.ID).Interface("panic", r).Msg("job panicked")
			p.fail(item.ID, fmt.Sprint(r))
		}
	}()

	if err := p.process(ctx, item); err != nil {
		msg := p.describe(err)
		log.Error().Str("job_id", item.ID).Err(err).Msg("job failed")
		p.fail(item.ID, msg)
	}
}

func (p *Pool) process(ctx context.Context, item job.Item) error {
	if _, ok := p.registry.Update(item.ID, progressPatch(job.StateProcessing, job.ProgressAccepted)); !ok {
		// evicted while waiting in the queue; nobody can observe the result
		log.Warn().Str("job_id", item.ID).Msg("job record gone before processing, skipping")
		return nil
	}

	if err := file.EnsureDir(p.artifactDir); err != nil {
		return err
	}
	name := job.ArtifactName(item.ID, item.Format)
	outputPath := filepath.Join(p.artifactDir, name)
	p.registry.Update(item.ID, progressPatch(job.StateProcessing, job.ProgressInvoking))

	log.Info().Str("job_id", item.ID).Str("url", item.SourceURL).Str("format", string(item.Format)).Msg("invoking converter")
	if err := p.converter.Convert(ctx, ytdlp.Request{
		SourceURL:  item.SourceURL,
		Format:     item.Format,
		OutputPath: outputPath,
	}); err != nil {
		return err
	}

	exists, err := file.IsRegular(outputPath)
	if err != nil {
		return err
	}
	if !exists {
		return errArtifactMissing
	}

	p.registry.Update(item.ID, progressPatch(job.StateProcessing, job.ProgressVerified))
	finished := job.StateFinished
	progress := job.ProgressDone
	p.registry.Update(item.ID, job.Patch{State: &finished, Progress: &progress, Artifact: &name})
	log.Info().Str("job_id", item.ID).Str("artifact", name).Msg("job finished")
	return nil
}

// describe maps a processing error to the text stored on the failed job.
// Timeouts keep the runner's text, which names the budget that ran out.
func (p *Pool) describe(err error) string {
	var toolErr *ytdlp.ToolError
	switch {
	case errors.Is(err, errArtifactMissing):
		return msgArtifactMissing
	case errors.As(err, &toolErr):
		if detail := toolErr.Detail(); detail != "" {
			return detail
		}
		return msgToolFailed
	default:
		return err.Error()
	}
}

func (p *Pool) fail(id, msg string) {
	if msg == "" {
		msg = msgToolFailed
	}
	failed := job.StateFailed
	progress := 0
	p.registry.Update(id, job.Patch{State: &failed, Progress: &progress, Error: &msg})
}

func progressPatch(state job.State, progress int) job.Patch {
	return job.Patch{State: &state, Progress: &progress}
}
