package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
)

// ErrNoOutput distinguishes "the tool ran but produced no file" from a
// non-zero exit.
var ErrNoOutput = errors.New("ytdlp: no output file produced")

// Adapter retrieves remote sources as audio via yt-dlp. The caller bounds the
// run with its context; tool output is never buffered.
type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath}
}

func (a *Adapter) FetchAudio(ctx context.Context, url, outDir string) (string, error) {
	tmpl := filepath.Join(outDir, "source.%(ext)s")
	cmd := exec.CommandContext(ctx, a.bin,
		"-x",
		"--audio-format", "m4a",
		"--no-playlist",
		"-o", tmpl,
		url,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ytdlp: timed out fetching %s: %w", url, err)
		}
		return "", fmt.Errorf("ytdlp: fetch %s: %w", url, err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "source.*"))
	if err != nil || len(matches) == 0 {
		return "", ErrNoOutput
	}
	return matches[0], nil
}
