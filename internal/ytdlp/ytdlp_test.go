package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"webdlp/internal/job"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ytdlp.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil { //nolint:gosec // test script must be executable
		t.Fatalf("write script: %v", err)
	}
	return path
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestArgs(t *testing.T) {
	cases := []struct {
		name   string
		format job.Format
		flag   string
		want   string
	}{
		{"audio extracts mp3", job.FormatAudio, "--audio-format", "mp3"},
		{"audio fixed bitrate", job.FormatAudio, "--audio-quality", "192K"},
		{"video capped at 720p", job.FormatVideo, "--format", videoSelector},
		{"video merged to mp4", job.FormatVideo, "--merge-output-format", "mp4"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			args, err := Args(c.format, "/tmp/out.file", "https://youtu.be/x")
			if err != nil {
				t.Fatalf("args: %v", err)
			}
			if got := argAfter(args, c.flag); got != c.want {
				t.Fatalf("%s = %q, want %q", c.flag, got, c.want)
			}
			if got := argAfter(args, "--output"); got != "/tmp/out.file" {
				t.Fatalf("--output = %q", got)
			}
			if !slices.Contains(args, "--no-mtime") {
				t.Fatalf("artifact mtime must be the download time: %v", args)
			}
			if args[len(args)-1] != "https://youtu.be/x" {
				t.Fatalf("source url must be the last argument: %v", args)
			}
		})
	}

	if _, err := Args(job.Format("flac"), "/tmp/x", "u"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestConvertWritesOutput(t *testing.T) {
	script := writeScript(t, `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then out="$2"; shift; fi
  shift
done
echo data > "$out"
`)
	out := filepath.Join(t.TempDir(), "job.mp3")
	tool := New(script, 5*time.Second)

	err := tool.Convert(context.Background(), Request{SourceURL: "https://youtu.be/x", Format: job.FormatAudio, OutputPath: out})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestConvertNonZeroExitCapturesStderr(t *testing.T) {
	script := writeScript(t, "echo 'network error' >&2\nexit 1\n")
	tool := New(script, 5*time.Second)

	err := tool.Convert(context.Background(), Request{SourceURL: "u", Format: job.FormatVideo, OutputPath: filepath.Join(t.TempDir(), "x.mp4")})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected *ToolError, got %v", err)
	}
	if toolErr.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", toolErr.ExitCode)
	}
	if toolErr.Detail() != "network error" {
		t.Fatalf("unexpected detail %q", toolErr.Detail())
	}
	if !strings.Contains(err.Error(), "network error") {
		t.Fatalf("error text should carry stderr: %v", err)
	}
}

func TestConvertTimeoutKillsProcess(t *testing.T) {
	script := writeScript(t, "sleep 30\n")
	tool := New(script, 100*time.Millisecond)

	start := time.Now()
	err := tool.Convert(context.Background(), Request{SourceURL: "u", Format: job.FormatAudio, OutputPath: filepath.Join(t.TempDir(), "x.mp3")})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 100ms") {
		t.Fatalf("timeout error should name the budget: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("tool was not terminated promptly: %s", elapsed)
	}
}

func TestConvertParentCancelIsNotTimeout(t *testing.T) {
	script := writeScript(t, "sleep 30\n")
	tool := New(script, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := tool.Convert(ctx, Request{SourceURL: "u", Format: job.FormatAudio, OutputPath: filepath.Join(t.TempDir(), "x.mp3")})
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected cancellation error distinct from timeout, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestConvertMissingBinary(t *testing.T) {
	tool := New(filepath.Join(t.TempDir(), "does-not-exist"), time.Second)
	err := tool.Convert(context.Background(), Request{SourceURL: "u", Format: job.FormatAudio, OutputPath: "x"})
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		t.Fatalf("missing binary should not look like a tool exit: %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	tool := New("", 0)
	if tool.path != defaultToolPath || tool.Timeout() != DefaultTimeout {
		t.Fatalf("unexpected defaults: %s %s", tool.path, tool.Timeout())
	}
}
