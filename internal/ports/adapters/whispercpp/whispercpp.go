// Package whispercpp runs a local whisper.cpp binary as the recognizer.
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/podclip/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

// whisper.cpp -oj output shape.
type whisperJSON struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Word  string  `json:"word"`
		} `json:"words,omitempty"`
	} `json:"segments"`
}

func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	outDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return types.Transcript{}, err
	}
	defer os.RemoveAll(outDir)

	outPrefix := filepath.Join(outDir, "whisper")
	cmd := exec.CommandContext(ctx, a.bin,
		"-m", a.model,
		"-f", audioPath,
		"-oj",
		"-of", outPrefix,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w", err)
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp output: %w", err)
	}
	var wj whisperJSON
	if err := json.Unmarshal(jb, &wj); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper.cpp output: %w", err)
	}

	tr := types.Transcript{Segments: make([]types.Segment, 0, len(wj.Segments))}
	for _, s := range wj.Segments {
		seg := types.Segment{
			Text:  strings.TrimSpace(s.Text),
			Start: s.Start,
			End:   s.End,
		}
		for _, w := range s.Words {
			word := strings.TrimSpace(w.Word)
			if word == "" || w.End <= w.Start {
				continue
			}
			seg.Words = append(seg.Words, types.SegmentWord{Word: word, Start: w.Start, End: w.End})
		}
		tr.Segments = append(tr.Segments, seg)
	}
	return tr, nil
}
