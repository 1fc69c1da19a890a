// Package pipeline drives a job through its stages: acquiring the source,
// transcribing it, and deriving candidate clips. Stage failures move the
// job to failed with the stage recorded; classifier failures are absorbed
// into a deterministic fallback so every transcribed job completes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/media"
	"github.com/forPelevin/podclip/internal/ports"
	"github.com/forPelevin/podclip/internal/ports/adapters/classifier"
	"github.com/forPelevin/podclip/internal/store"
	"github.com/forPelevin/podclip/internal/timecode"
	"github.com/forPelevin/podclip/internal/types"
)

// Acquirer and Transcriber are the stage boundaries the runner depends on.
type Acquirer interface {
	Acquire(ctx context.Context, job *types.Job, workDir string) (media.Artifact, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, source string, chunks []types.AudioChunk) (types.Transcript, error)
}

type Deps struct {
	Jobs       *store.JobStore
	Acquirer   Acquirer
	ASR        Transcriber
	Classifier ports.Classifier
	WordCache  *words.Cache
	Log        *slog.Logger

	DataDir             string
	AudienceProfilePath string
	TranscriptCharLimit int
}

type Runner struct {
	deps Deps
}

func NewRunner(deps Deps) *Runner {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Runner{deps: deps}
}

// Run executes the full pipeline for one job. It never returns an error:
// every failure is recorded on the job itself.
func (r *Runner) Run(ctx context.Context, jobID string) {
	log := r.deps.Log.With("job_id", jobID)

	job, err := r.setStatus(jobID, types.JobAcquiring, "acquiring source")
	if err != nil {
		log.Error("start job", "error", err)
		return
	}

	workDir := filepath.Join(r.deps.DataDir, "jobs", jobID)
	art, err := r.deps.Acquirer.Acquire(ctx, job, workDir)
	if err != nil {
		r.fail(jobID, "acquisition", err)
		return
	}
	job, err = r.deps.Jobs.Update(jobID, func(j *types.Job) error {
		j.AudioPath = art.AudioPath
		return nil
	})
	if err != nil {
		log.Error("record audio path", "error", err)
		return
	}

	if _, err = r.setStatus(jobID, types.JobTranscribing, fmt.Sprintf("transcribing %d chunk(s)", len(art.Chunks))); err != nil {
		log.Error("advance to transcribing", "error", err)
		return
	}
	tr, err := r.deps.ASR.Transcribe(ctx, sourceIdentity(job), art.Chunks)
	if err != nil {
		r.fail(jobID, "transcription", err)
		return
	}
	if _, err = r.deps.Jobs.Update(jobID, func(j *types.Job) error {
		j.Transcript = &tr
		return nil
	}); err != nil {
		log.Error("record transcript", "error", err)
		return
	}
	r.deps.WordCache.Invalidate(jobID)

	if _, err = r.setStatus(jobID, types.JobAnalyzing, "selecting candidate clips"); err != nil {
		log.Error("advance to analyzing", "error", err)
		return
	}
	candidates := r.classify(ctx, tr, log)

	if _, err = r.deps.Jobs.Update(jobID, func(j *types.Job) error {
		j.Clips = candidates
		j.Status = types.JobComplete
		j.Progress = fmt.Sprintf("complete: %d clip(s)", len(candidates))
		return nil
	}); err != nil {
		log.Error("complete job", "error", err)
		return
	}
	log.Info("job complete", "clips", len(candidates))
}

// classify asks the external classifier for candidates and absorbs every
// failure mode into the fallback clip.
func (r *Runner) classify(ctx context.Context, tr types.Transcript, log *slog.Logger) []types.Clip {
	end := transcriptEnd(tr)
	profile := r.audienceProfile()
	text := transcriptText(tr, r.deps.TranscriptCharLimit)

	candidates, err := r.deps.Classifier.Candidates(ctx, text, profile)
	if err != nil {
		log.Warn("classifier failed, using fallback clip", "error", err)
		return classifier.FallbackClips(end)
	}
	if len(candidates) == 0 {
		return classifier.FallbackClips(end)
	}
	return candidates
}

func (r *Runner) audienceProfile() string {
	if r.deps.AudienceProfilePath == "" {
		return "General audience interested in the show's topic."
	}
	b, err := os.ReadFile(r.deps.AudienceProfilePath)
	if err != nil {
		r.deps.Log.Warn("read audience profile", "path", r.deps.AudienceProfilePath, "error", err)
		return "General audience interested in the show's topic."
	}
	return strings.TrimSpace(string(b))
}

// setStatus advances a non-terminal job and records human-readable
// progress. Terminal jobs are left untouched.
func (r *Runner) setStatus(jobID string, status types.JobStatus, progress string) (*types.Job, error) {
	return r.deps.Jobs.Update(jobID, func(j *types.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("job %s already terminal (%s)", jobID, j.Status)
		}
		j.Status = status
		j.Progress = progress
		return nil
	})
}

func (r *Runner) fail(jobID, stage string, cause error) {
	r.deps.Log.Error("stage failed", "job_id", jobID, "stage", stage, "error", cause)
	if _, err := r.deps.Jobs.Update(jobID, func(j *types.Job) error {
		j.Status = types.JobFailed
		j.Progress = "failed during " + stage
		j.Error = fmt.Sprintf("%s: %v", stage, cause)
		return nil
	}); err != nil {
		r.deps.Log.Error("record failure", "job_id", jobID, "error", err)
	}
}

func sourceIdentity(job *types.Job) string {
	if job.SourceURL != "" {
		return job.SourceURL
	}
	return job.SourcePath
}

func transcriptEnd(tr types.Transcript) float64 {
	if n := len(tr.Segments); n > 0 {
		return tr.Segments[n-1].End
	}
	return 0
}

// transcriptText renders segments as timestamped lines, bounded to limit
// characters so the classifier prompt stays within budget.
func transcriptText(tr types.Transcript, limit int) string {
	var b strings.Builder
	for _, seg := range tr.Segments {
		line := fmt.Sprintf("[%s - %s] %s\n", timecode.Format(seg.Start), timecode.Format(seg.End), seg.Text)
		if limit > 0 && b.Len()+len(line) > limit {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
