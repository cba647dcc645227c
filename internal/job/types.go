package job

import "time"

type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateFinished   State = "finished"
	StateFailed     State = "error"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

type Format string

const (
	FormatAudio Format = "mp3"
	FormatVideo Format = "mp4"
)

// Valid reports whether f is one of the supported output formats.
func (f Format) Valid() bool {
	return f == FormatAudio || f == FormatVideo
}

// Extension is the artifact file extension for the format, without the dot.
func (f Format) Extension() string { return string(f) }

// ArtifactName derives the artifact filename for a job deterministically.
func ArtifactName(id string, f Format) string {
	return id + "." + f.Extension()
}

// Record is the registry's view of one job. Values are copied in and out of
// the registry, so a Record held by a caller is never mutated concurrently.
type Record struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	Format    Format    `json:"format"`
	State     State     `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Artifact  string    `json:"artifact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Patch lists the fields an Update merges into a record; nil fields are kept.
type Patch struct {
	State    *State
	Progress *int
	Error    *string
	Artifact *string
}

// Item is what travels through the work queue: the initiating parameters only.
type Item struct {
	ID        string
	SourceURL string
	Format    Format
}

// Status is the answer to a status query.
type Status struct {
	State    State  `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Stats summarizes registry and queue occupancy.
type Stats struct {
	Queued int           `json:"queue_length"`
	Jobs   int           `json:"jobs"`
	States map[State]int `json:"states"`
}

const (
	ProgressAccepted = 10
	ProgressInvoking = 30
	ProgressVerified = 90
	ProgressDone     = 100
)
