package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/podclip/internal/ports"
	"github.com/forPelevin/podclip/internal/timecode"
	"github.com/forPelevin/podclip/internal/types"
)

// Artifacts smaller than this are treated as failed renders.
const minArtifactBytes = 1024

var ErrRenderFailed = errors.New("render failed")

type Renderer struct {
	tool    ports.MediaTool
	outDir  string
	timeout time.Duration
	log     *slog.Logger
}

func NewRenderer(tool ports.MediaTool, outDir string, timeout time.Duration, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{tool: tool, outDir: outDir, timeout: timeout, log: log}
}

// Render extracts job.Clips[clipIndex] from the job's source media via
// stream copy and returns the artifact path. The artifact key embeds the
// exact boundary strings, so a boundary edit always yields a fresh render
// while an unchanged clip reuses the existing artifact.
func (r *Renderer) Render(ctx context.Context, job *types.Job, clipIndex int) (string, error) {
	if clipIndex < 0 || clipIndex >= len(job.Clips) {
		return "", fmt.Errorf("%w: index %d of %d", ErrClipNotFound, clipIndex, len(job.Clips))
	}
	clip := job.Clips[clipIndex]

	startSec, err := timecode.Parse(clip.StartTimestamp)
	if err != nil {
		return "", fmt.Errorf("%w: start %q: %v", ErrRenderFailed, clip.StartTimestamp, err)
	}
	endSec, err := timecode.Parse(clip.EndTimestamp)
	if err != nil {
		return "", fmt.Errorf("%w: end %q: %v", ErrRenderFailed, clip.EndTimestamp, err)
	}
	dur := endSec - startSec
	if dur <= 0 {
		return "", fmt.Errorf("%w: non-positive duration (%s..%s)", ErrRenderFailed, clip.StartTimestamp, clip.EndTimestamp)
	}

	media := job.MediaPath()
	if media == "" {
		return "", fmt.Errorf("%w: job %s has no source media", ErrRenderFailed, job.ID)
	}

	out := filepath.Join(r.outDir, r.artifactName(job.ID, clipIndex, clip))
	if fi, err := os.Stat(out); err == nil && fi.Size() >= minArtifactBytes {
		r.log.Info("render cache hit", "job_id", job.ID, "clip", clipIndex, "path", out)
		return out, nil
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", err
	}

	renderCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.tool.ExtractClip(renderCtx, media, startSec, dur, out); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("%w: no output produced", ErrRenderFailed)
	}
	if fi.Size() < minArtifactBytes {
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: output too small (%d bytes)", ErrRenderFailed, fi.Size())
	}
	r.log.Info("clip rendered", "job_id", job.ID, "clip", clipIndex, "seconds", dur, "path", out)
	return out, nil
}

func (r *Renderer) artifactName(jobID string, clipIndex int, clip types.Clip) string {
	title := ""
	if len(clip.Titles) > 0 {
		title = clip.Titles[0]
	}
	return fmt.Sprintf("%s_clip%02d_%s_%s_%s.mp4",
		jobID,
		clipIndex,
		sanitizeStamp(clip.StartTimestamp),
		sanitizeStamp(clip.EndTimestamp),
		slug(title),
	)
}

func sanitizeStamp(ts string) string {
	return strings.ReplaceAll(ts, ":", "-")
}

var nonSlugRE = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	out := nonSlugRE.ReplaceAllString(strings.ToLower(s), "-")
	out = strings.Trim(out, "-")
	if out == "" {
		return "clip"
	}
	if len(out) > 48 {
		out = strings.Trim(out[:48], "-")
	}
	return out
}
