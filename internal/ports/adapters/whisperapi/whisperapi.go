// Package whisperapi calls a hosted Whisper-style speech-to-text HTTP API.
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/podclip/internal/types"
)

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "whisper-1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words,omitempty"`
	} `json:"segments"`
}

func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return types.Transcript{}, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", a.model); err != nil {
		return types.Transcript{}, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return types.Transcript{}, err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return types.Transcript{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return types.Transcript{}, err
	}
	if err := mw.Close(); err != nil {
		return types.Transcript{}, err
	}

	url := a.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return types.Transcript{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("recognizer request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.Transcript{}, fmt.Errorf("recognizer status %d: %s", resp.StatusCode, strings.TrimSpace(string(rb)))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return types.Transcript{}, fmt.Errorf("decode recognizer response: %w", err)
	}

	tr := types.Transcript{Segments: make([]types.Segment, 0, len(vr.Segments))}
	for _, s := range vr.Segments {
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
	// Some recognizer deployments return plain text with no segmentation.
	if len(tr.Segments) == 0 && strings.TrimSpace(vr.Text) != "" {
		tr.Segments = append(tr.Segments, types.Segment{Text: strings.TrimSpace(vr.Text)})
	}
	return tr, nil
}
