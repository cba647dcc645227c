// Package ytdlp drives the external yt-dlp binary that turns a source URL
// into an audio or video artifact on disk.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webdlp/internal/job"
)

const (
	audioQuality    = "192K"
	videoSelector   = "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best"
	DefaultTimeout  = 5 * time.Minute
	defaultToolPath = "yt-dlp"
)

var (
	ErrTimeout           = errors.New("download timeout")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// ToolError is returned when the tool ran to completion with a failure.
type ToolError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("exit code %d: %s", e.ExitCode, detail)
	}
	return fmt.Sprintf("exit code %d", e.ExitCode)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Detail is the diagnostic text the tool wrote to stderr, trimmed.
func (e *ToolError) Detail() string { return strings.TrimSpace(e.Stderr) }

// Request describes one conversion.
type Request struct {
	SourceURL  string
	Format     job.Format
	OutputPath string
}

// Tool invokes yt-dlp once per request with a hard timeout.
type Tool struct {
	path    string
	timeout time.Duration
	runner  commandRunner
}

// New returns a Tool that runs the binary at path. Non-positive timeouts
// fall back to DefaultTimeout.
func New(path string, timeout time.Duration) *Tool {
	if strings.TrimSpace(path) == "" {
		path = defaultToolPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tool{path: path, timeout: timeout, runner: &execRunner{}}
}

// Timeout is the per-invocation time budget.
func (t *Tool) Timeout() time.Duration { return t.timeout }

// Convert runs the tool for req and blocks until it exits or the timeout
// expires, in which case the process is killed and ErrTimeout is returned.
func (t *Tool) Convert(ctx context.Context, req Request) error {
	args, err := Args(req.Format, req.OutputPath, req.SourceURL)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.runner.Run(runCtx, t.path, args...)
	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("tool interrupted: %w", ctx.Err())
	}
	if res.ExitCode < 0 {
		return fmt.Errorf("run %s: %w", t.path, err)
	}
	return &ToolError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
}

// Args builds the yt-dlp argument list for a format.
func Args(format job.Format, outputPath, sourceURL string) ([]string, error) {
	var args []string
	switch format {
	case job.FormatAudio:
		args = []string{
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", audioQuality,
		}
	case job.FormatVideo:
		args = []string{
			"--format", videoSelector,
			"--merge-output-format", "mp4",
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return append(args,
		"--output", outputPath,
		"--no-playlist",
		"--no-mtime",
		"--quiet",
		"--no-warnings",
		sourceURL,
	), nil
}
