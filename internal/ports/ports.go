package ports

import (
	"context"

	"github.com/forPelevin/podclip/internal/types"
)

// MediaTool wraps the host transcoder (ffmpeg/ffprobe).
type MediaTool interface {
	// ExtractAudio produces a mono 16kHz speech-optimized audio artifact at
	// the given bitrate.
	ExtractAudio(ctx context.Context, in, out string, bitrateKbps int) error
	// SplitAudio cuts the artifact into fixed-duration chunks and returns
	// their paths in timeline order.
	SplitAudio(ctx context.Context, in, outDir string, chunkSeconds int) ([]string, error)
	// ExtractClip copies the [startSec, startSec+durSec) range into out
	// without re-encoding.
	ExtractClip(ctx context.Context, in string, startSec, durSec float64, out string) error
	ProbeDuration(ctx context.Context, in string) (float64, error)
}

// Fetcher retrieves a remote source as a local audio file.
type Fetcher interface {
	FetchAudio(ctx context.Context, url, outDir string) (string, error)
}

// Recognizer is the external speech-to-text service. Timestamps in the
// returned transcript are relative to the start of audioPath.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

// Classifier turns a transcript plus an audience profile into candidate
// clips. Implementations must always return at least one clip on a
// successful call; transport-level failures surface as errors and are
// absorbed by the caller.
type Classifier interface {
	Candidates(ctx context.Context, transcriptText, audienceProfile string) ([]types.Clip, error)
}
