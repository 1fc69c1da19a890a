// Package classifier calls the external text-generation service that turns a
// transcript plus an audience profile into candidate clips. Responses are
// treated as hostile input: every field is coerced to its expected type in
// one place, and an empty or unparseable result degrades to a single
// deterministic fallback clip so the pipeline always completes.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/podclip/internal/domain/titles"
	"github.com/forPelevin/podclip/internal/timecode"
	"github.com/forPelevin/podclip/internal/types"
)

const requestTimeout = 90 * time.Second

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai"
	}
	return &Adapter{key: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Minute}}
}

func (a *Adapter) Candidates(ctx context.Context, transcriptText, audienceProfile string) ([]types.Clip, error) {
	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": buildPrompt(transcriptText, audienceProfile)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("classifier timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("classifier status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("classifier status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Choices) == 0 {
		return FallbackClips(0), nil
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return FallbackClips(0), nil
	}
	return ParseClips(content), nil
}

func buildPrompt(transcriptText, audienceProfile string) string {
	var b strings.Builder
	b.WriteString("You select highlight clips from a podcast transcript for a specific audience. ")
	b.WriteString("Return strictly a JSON array (no markdown, no code fences). Each element must have: ")
	b.WriteString(`"start_timestamp" and "end_timestamp" (strings, MM:SS or HH:MM:SS, matching the transcript), `)
	b.WriteString(`"duration_minutes" (number), "titles" (array of exactly 3 title variants), `)
	b.WriteString(`"quote" (the strongest verbatim line), "excerpt" (2-3 sentence summary), "rationale" (why this audience cares).`)
	b.WriteString("\n\nTarget audience profile:\n")
	b.WriteString(audienceProfile)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcriptText)
	return b.String()
}

// rawClip is the variable-shape wire form: the service is allowed to send
// numbers where strings belong and vice versa.
type rawClip struct {
	StartTimestamp  any `json:"start_timestamp"`
	EndTimestamp    any `json:"end_timestamp"`
	DurationMinutes any `json:"duration_minutes"`
	Titles          any `json:"titles"`
	Title           any `json:"title"`
	Quote           any `json:"quote"`
	Excerpt         any `json:"excerpt"`
	Rationale       any `json:"rationale"`
}

// ParseClips decodes the model's reply into validated clips. Anything that
// cannot be salvaged yields the deterministic fallback so callers always get
// at least one clip.
func ParseClips(content string) []types.Clip {
	arr, err := extractJSONArray(content)
	if err != nil {
		return FallbackClips(0)
	}
	var raws []rawClip
	if err := json.Unmarshal([]byte(arr), &raws); err != nil {
		return FallbackClips(0)
	}

	out := make([]types.Clip, 0, len(raws))
	for _, r := range raws {
		c, ok := coerce(r)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return FallbackClips(0)
	}
	return out
}

// coerce applies every field default and type fix in one place.
func coerce(r rawClip) (types.Clip, bool) {
	start, ok := asTimestamp(r.StartTimestamp)
	if !ok {
		return types.Clip{}, false
	}
	end, ok := asTimestamp(r.EndTimestamp)
	if !ok {
		return types.Clip{}, false
	}
	startSec, err1 := timecode.Parse(start)
	endSec, err2 := timecode.Parse(end)
	if err1 != nil || err2 != nil || endSec <= startSec {
		return types.Clip{}, false
	}

	titleList := asStrings(r.Titles)
	if len(titleList) == 0 {
		if t := asString(r.Title); t != "" {
			titleList = []string{t}
		} else {
			titleList = []string{"Highlight"}
		}
	}
	for len(titleList) < 3 {
		titleList = append(titleList, titleList[0])
	}
	titleList = titles.Rank(titleList[:3])

	return types.Clip{
		StartTimestamp: start,
		EndTimestamp:   end,
		// Never trust the model's arithmetic.
		DurationMinutes: (endSec - startSec) / 60,
		Titles:          titleList,
		Quote:           asString(r.Quote),
		Excerpt:         asString(r.Excerpt),
		Rationale:       asString(r.Rationale),
	}, true
}

// FallbackClips is the deterministic placeholder used when the classifier
// returns nothing usable. endSeconds bounds the clip to the transcript when
// known; zero selects the first minute.
func FallbackClips(endSeconds float64) []types.Clip {
	end := 60.0
	if endSeconds > 0 && endSeconds < end {
		end = endSeconds
	}
	return []types.Clip{{
		StartTimestamp:  "00:00",
		EndTimestamp:    timecode.Format(end),
		DurationMinutes: end / 60,
		Titles: []string{
			"Episode opening (automatic selection unavailable)",
			"Highlights pending review",
			"Opening minute",
		},
		Quote:     "",
		Excerpt:   "Automatic clip selection did not return usable candidates; this placeholder covers the episode opening so editing can proceed.",
		Rationale: "Classifier response was empty or unparseable; substituted a deterministic placeholder.",
	}}
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("classifier: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("classifier: unexpected content type %T", v)
	}
}

func extractJSONArray(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("classifier: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the first JSON array found.
	start := strings.Index(t, "[")
	end := strings.LastIndex(t, "]")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("classifier: could not locate JSON array in: %q", truncate(t, 200))
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// asTimestamp accepts a timestamp string, or a bare number meaning seconds.
func asTimestamp(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		if x < 0 {
			return "", false
		}
		return timecode.Format(x), true
	default:
		return "", false
	}
}

func asStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, it := range arr {
		if s := asString(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
