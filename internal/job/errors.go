package job

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrNotReady    = errors.New("job not ready")
	ErrNoArtifact  = errors.New("artifact not available")
)
