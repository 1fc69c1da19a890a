// Package asr orchestrates speech recognition over one or more audio
// chunks and maintains a transcript cache keyed by source identity, so a
// re-submitted source skips the recognizer entirely.
package asr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forPelevin/podclip/internal/ports"
	"github.com/forPelevin/podclip/internal/types"
)

type Service struct {
	rec      ports.Recognizer
	cacheDir string
	log      *slog.Logger
}

func New(rec ports.Recognizer, cacheDir string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{rec: rec, cacheDir: cacheDir, log: log}
}

// CacheKey derives a stable identifier from the source URL or path.
func CacheKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:12]
}

// Transcribe recognizes every chunk in order, shifting each chunk's
// segments by its recorded absolute offset before concatenation. This is
// the one place cross-chunk timestamp correctness is established.
//
// Split chunk files are working copies and are removed as they are
// consumed; a single-chunk artifact is the normalized audio itself and is
// left in place.
func (s *Service) Transcribe(ctx context.Context, source string, chunks []types.AudioChunk) (types.Transcript, error) {
	if len(chunks) == 0 {
		return types.Transcript{}, fmt.Errorf("no audio chunks for source %q", source)
	}

	key := CacheKey(source)
	if tr, ok := s.cached(key); ok {
		s.log.Info("transcript cache hit", "source_key", key)
		return tr, nil
	}

	removable := len(chunks) > 1
	var merged types.Transcript
	for i, ch := range chunks {
		tr, err := s.rec.Transcribe(ctx, ch.Path)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("transcribe chunk %d/%d: %w", i+1, len(chunks), err)
		}
		for _, seg := range tr.Segments {
			merged.Segments = append(merged.Segments, shiftSegment(seg, ch.OffsetSeconds))
		}
		if removable {
			if err := os.Remove(ch.Path); err != nil {
				s.log.Warn("remove consumed chunk", "path", ch.Path, "error", err)
			}
		}
		s.log.Info("chunk transcribed", "chunk", i+1, "of", len(chunks), "offset_seconds", ch.OffsetSeconds, "segments", len(tr.Segments))
	}

	if err := s.writeCache(key, merged); err != nil {
		s.log.Warn("write transcript cache", "source_key", key, "error", err)
	}
	return merged, nil
}

func shiftSegment(seg types.Segment, offset float64) types.Segment {
	seg.Start += offset
	seg.End += offset
	for i := range seg.Words {
		seg.Words[i].Start += offset
		seg.Words[i].End += offset
	}
	return seg
}

func (s *Service) cachePath(key string) string {
	return filepath.Join(s.cacheDir, "transcript_"+key+".json")
}

func (s *Service) cached(key string) (types.Transcript, bool) {
	b, err := os.ReadFile(s.cachePath(key))
	if err != nil {
		return types.Transcript{}, false
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return types.Transcript{}, false
	}
	return tr, true
}

func (s *Service) writeCache(key string, tr types.Transcript) error {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	tmp := s.cachePath(key) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.cachePath(key))
}
