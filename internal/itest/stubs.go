//go:build integration

package itest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeStub installs an executable shell script standing in for a host tool.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// fakeTranscoder mimics the transcoder: it writes a plausible artifact at
// the last argument, expanding a segment pattern into two chunk files.
const fakeTranscoder = `
last=""
for a in "$@"; do last="$a"; done
case "$last" in
  *%03d*)
    p0=$(printf '%s' "$last" | sed 's/%03d/000/')
    p1=$(printf '%s' "$last" | sed 's/%03d/001/')
    head -c 4096 /dev/zero > "$p0"
    head -c 4096 /dev/zero > "$p1"
    ;;
  *)
    head -c 4096 /dev/zero > "$last"
    ;;
esac
exit 0
`

// fakeProber reports a 723 second source so the pipeline splits it at the
// 600 second cap.
const fakeProber = `
echo "723.000000"
exit 0
`

// fakeFetcher mimics the remote downloader output template handling.
const fakeFetcher = `
tmpl=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then tmpl="$a"; fi
  prev="$a"
done
out=$(printf '%s' "$tmpl" | sed 's/%(ext)s/m4a/')
head -c 4096 /dev/zero > "$out"
exit 0
`

// newRecognizerServer serves verbose transcription responses keyed by the
// uploaded chunk filename. The second chunk reports chunk-local timestamps
// that the pipeline must shift by 600 seconds.
func newRecognizerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, fh, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var segments []map[string]any
		if strings.Contains(fh.Filename, "chunk_001") {
			segments = []map[string]any{{
				"start": 12.0, "end": 100.0,
				"text": "and this is the second chunk of the episode",
			}}
		} else {
			segments = []map[string]any{{
				"start": 0.0, "end": 599.5,
				"text": "welcome to the show this is the first chunk",
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"segments": segments})
	}))
}

// newClassifierServer returns a single well-formed candidate clip.
func newClassifierServer(t *testing.T) *httptest.Server {
	t.Helper()
	content := `[{"start_timestamp":"00:05","end_timestamp":"01:05","duration_minutes":1,` +
		`"titles":["How to open a show","Opening","The first minute"],` +
		`"quote":"welcome to the show","excerpt":"The host opens the episode.","rationale":"Strong hook."}]`
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
}
