package types

import "time"

// Transcript is the stitched recognizer output for one source, in absolute
// source time.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Text  string        `json:"text"`
	Start float64       `json:"start_seconds"`
	End   float64       `json:"end_seconds"`
	Words []SegmentWord `json:"words,omitempty"`
}

// SegmentWord is a recognizer-supplied word timestamp. Most recognizer
// configurations omit these; downstream code must not rely on their presence.
type SegmentWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment span in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Clip is one candidate highlight. Timestamps are strings in the transcript's
// own "MM:SS"/"HH:MM:SS" format; DurationMinutes is always recomputed from
// the timestamp pair, never trusted from upstream.
type Clip struct {
	StartTimestamp  string    `json:"start_timestamp"`
	EndTimestamp    string    `json:"end_timestamp"`
	DurationMinutes float64   `json:"duration_minutes"`
	Titles          []string  `json:"titles"`
	Quote           string    `json:"quote"`
	Excerpt         string    `json:"excerpt"`
	Rationale       string    `json:"rationale"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobAcquiring    JobStatus = "acquiring"
	JobTranscribing JobStatus = "transcribing"
	JobAnalyzing    JobStatus = "analyzing"
	JobComplete     JobStatus = "complete"
	JobFailed       JobStatus = "failed"
)

// Terminal reports whether the status ends the pipeline for this job.
func (s JobStatus) Terminal() bool { return s == JobComplete || s == JobFailed }

// Job is one end-to-end request to turn a source media item into a
// transcript and clip candidates. It is mutated only by the worker owning it,
// except for the Clips field which boundary edits may overwrite later.
type Job struct {
	ID         string      `json:"id"`
	SourceURL  string      `json:"source_url,omitempty"`
	SourcePath string      `json:"source_path,omitempty"`
	AudioPath  string      `json:"audio_path,omitempty"`
	Status     JobStatus   `json:"status"`
	Progress   string      `json:"progress"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Clips      []Clip      `json:"clips,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// MediaPath is the file the clip renderer cuts from: the original upload when
// the job started from a file, otherwise the fetched audio artifact.
func (j *Job) MediaPath() string {
	if j.SourcePath != "" {
		return j.SourcePath
	}
	return j.AudioPath
}

// AudioChunk is one piece of the normalized audio artifact after splitting,
// with its absolute start offset in the full source.
type AudioChunk struct {
	Path          string  `json:"path"`
	OffsetSeconds float64 `json:"offset_seconds"`
}
