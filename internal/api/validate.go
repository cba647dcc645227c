package api

import (
	"regexp"
	"strings"

	"webdlp/internal/job"
)

var sourceURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+`)

// validSourceURL accepts YouTube watch and short links.
func validSourceURL(raw string) bool {
	return sourceURLPattern.MatchString(strings.TrimSpace(raw))
}

func parseFormat(raw string) (job.Format, bool) {
	if strings.TrimSpace(raw) == "" {
		return job.FormatVideo, true
	}
	f := job.Format(strings.ToLower(strings.TrimSpace(raw)))
	return f, f.Valid()
}
