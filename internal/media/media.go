// Package media turns a job's source (remote URL or local upload) into a
// normalized speech-ready audio artifact, re-encoding or splitting it when
// it would exceed what the recognizer accepts.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/podclip/internal/ports"
	"github.com/forPelevin/podclip/internal/types"
)

type Acquirer struct {
	tool    ports.MediaTool
	fetcher ports.Fetcher
	log     *slog.Logger

	fetchTimeout time.Duration
	maxBytes     int64
	chunkSeconds int
	bitrateKbps  int
}

// Artifact is the acquisition result handed to transcription.
type Artifact struct {
	AudioPath       string
	DurationSeconds float64
	Chunks          []types.AudioChunk
}

func NewAcquirer(tool ports.MediaTool, fetcher ports.Fetcher, log *slog.Logger, fetchTimeout time.Duration, maxBytes int64, chunkSeconds, bitrateKbps int) *Acquirer {
	if log == nil {
		log = slog.Default()
	}
	return &Acquirer{
		tool:         tool,
		fetcher:      fetcher,
		log:          log,
		fetchTimeout: fetchTimeout,
		maxBytes:     maxBytes,
		chunkSeconds: chunkSeconds,
		bitrateKbps:  bitrateKbps,
	}
}

// Acquire produces the normalized audio for a job inside workDir. Remote
// sources are fetched first under a hard wall-clock timeout.
func (a *Acquirer) Acquire(ctx context.Context, job *types.Job, workDir string) (Artifact, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Artifact{}, err
	}

	source := job.SourcePath
	if job.SourceURL != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		fetched, err := a.fetcher.FetchAudio(fetchCtx, job.SourceURL, workDir)
		cancel()
		if err != nil {
			return Artifact{}, fmt.Errorf("fetch %s: %w", job.SourceURL, err)
		}
		source = fetched
	}
	if source == "" {
		return Artifact{}, fmt.Errorf("job %s has no source", job.ID)
	}

	audioPath := filepath.Join(workDir, "audio.m4a")
	if err := a.tool.ExtractAudio(ctx, source, audioPath, a.bitrateKbps); err != nil {
		return Artifact{}, fmt.Errorf("extract audio: %w", err)
	}
	audioPath = a.shrinkIfOversized(ctx, source, audioPath)

	dur, err := a.tool.ProbeDuration(ctx, audioPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("probe duration: %w", err)
	}

	art := Artifact{AudioPath: audioPath, DurationSeconds: dur}
	if a.chunkSeconds > 0 && dur > float64(a.chunkSeconds) {
		chunkDir := filepath.Join(workDir, "chunks")
		if err := os.MkdirAll(chunkDir, 0o755); err != nil {
			return Artifact{}, err
		}
		paths, err := a.tool.SplitAudio(ctx, audioPath, chunkDir, a.chunkSeconds)
		if err != nil {
			return Artifact{}, fmt.Errorf("split audio: %w", err)
		}
		for i, p := range paths {
			art.Chunks = append(art.Chunks, types.AudioChunk{Path: p, OffsetSeconds: float64(i * a.chunkSeconds)})
		}
		a.log.Info("audio split for recognition", "job_id", job.ID, "duration_seconds", dur, "chunks", len(paths))
	} else {
		art.Chunks = []types.AudioChunk{{Path: audioPath}}
	}
	return art, nil
}

// shrinkIfOversized retries extraction at half bitrate when the first pass
// exceeds the recognizer's size ceiling. The first-pass output survives if
// the second pass fails.
func (a *Acquirer) shrinkIfOversized(ctx context.Context, source, audioPath string) string {
	if a.maxBytes <= 0 {
		return audioPath
	}
	fi, err := os.Stat(audioPath)
	if err != nil || fi.Size() <= a.maxBytes {
		return audioPath
	}

	lower := a.bitrateKbps / 2
	if lower < 16 {
		lower = 16
	}
	lowPath := filepath.Join(filepath.Dir(audioPath), "audio_low.m4a")
	if err := a.tool.ExtractAudio(ctx, source, lowPath, lower); err != nil {
		a.log.Warn("lower-bitrate re-encode failed, keeping first pass", "error", err, "size_bytes", fi.Size())
		return audioPath
	}
	_ = os.Remove(audioPath)
	a.log.Info("audio re-encoded under size ceiling", "bitrate_kbps", lower)
	return lowPath
}
