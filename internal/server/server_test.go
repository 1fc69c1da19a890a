package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forPelevin/podclip/internal/clips"
	"github.com/forPelevin/podclip/internal/config"
	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/media"
	"github.com/forPelevin/podclip/internal/pipeline"
	"github.com/forPelevin/podclip/internal/store"
	"github.com/forPelevin/podclip/internal/types"
	"github.com/forPelevin/podclip/internal/upload"
)

type stubAcquirer struct{}

func (stubAcquirer) Acquire(_ context.Context, _ *types.Job, workDir string) (media.Artifact, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return media.Artifact{}, err
	}
	audio := workDir + "/audio.m4a"
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		return media.Artifact{}, err
	}
	return media.Artifact{AudioPath: audio, DurationSeconds: 10, Chunks: []types.AudioChunk{{Path: audio}}}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, string, []types.AudioChunk) (types.Transcript, error) {
	return types.Transcript{Segments: []types.Segment{
		{Text: "aa bb cc dd ee ff gg hh ii jj", Start: 0, End: 10},
	}}, nil
}

type stubClassifier struct{}

func (stubClassifier) Candidates(context.Context, string, string) ([]types.Clip, error) {
	return []types.Clip{{
		StartTimestamp:  "00:01",
		EndTimestamp:    "00:08",
		DurationMinutes: 7.0 / 60,
		Titles:          []string{"t1", "t2", "t3"},
	}}, nil
}

type stubRenderTool struct{}

func (stubRenderTool) ExtractAudio(context.Context, string, string, int) error { return nil }
func (stubRenderTool) SplitAudio(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}
func (stubRenderTool) ProbeDuration(context.Context, string) (float64, error) { return 0, nil }
func (stubRenderTool) ExtractClip(_ context.Context, _ string, _, _ float64, out string) error {
	return os.WriteFile(out, make([]byte, 4096), 0o644)
}

type testEnv struct {
	srv  *httptest.Server
	jobs *store.JobStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		DataDir:         t.TempDir(),
		MaxClipDuration: 25 * time.Minute,
		ChunkSizeBytes:  10 << 20,
	}
	jobs, err := store.NewJobStore(t.TempDir())
	require.NoError(t, err)
	uploads, err := upload.NewManager(t.TempDir(), cfg.ChunkSizeBytes, nil)
	require.NoError(t, err)

	cache := words.NewCache(16, time.Minute)
	runner := pipeline.NewRunner(pipeline.Deps{
		Jobs:       jobs,
		Acquirer:   stubAcquirer{},
		ASR:        stubTranscriber{},
		Classifier: stubClassifier{},
		WordCache:  cache,
		DataDir:    cfg.DataDir,
	})
	pool := pipeline.NewPool(runner, 2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)

	renderer := clips.NewRenderer(stubRenderTool{}, t.TempDir(), time.Minute, nil)
	s := New(cfg, jobs, uploads, pool, renderer, cache, nil)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, jobs: jobs}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func (e *testEnv) uploadChunk(t *testing.T, sessionID string, index int, payload []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", sessionID))
	require.NoError(t, mw.WriteField("chunk_index", fmt.Sprint(index)))
	fw, err := mw.CreateFormFile("chunk", "blob")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/api/chunked/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp, body := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestChunkedUpload_EndToEnd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// Three chunks: two full-size plus a remainder.
	const chunkSize = 1024
	payload := make([]byte, 2*chunkSize+512)
	for i := range payload {
		payload[i] = byte(i)
	}

	resp, body := env.postJSON(t, "/api/chunked/initiate", map[string]any{
		"filename":   "episode.mp4",
		"file_size":  len(payload),
		"chunk_size": chunkSize,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := body["session"].(map[string]any)
	sessionID := sess["id"].(string)
	require.Equal(t, float64(3), sess["total_chunks"])

	// Upload chunks 0 and 2 only, then try to complete.
	require.Equal(t, http.StatusOK, env.uploadChunk(t, sessionID, 0, payload[:chunkSize]).StatusCode)
	require.Equal(t, http.StatusOK, env.uploadChunk(t, sessionID, 2, payload[2*chunkSize:]).StatusCode)

	resp, body = env.postJSON(t, "/api/chunked/complete", map[string]any{"session_id": sessionID})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, []any{float64(1)}, body["missing_chunks"])

	// Fill the gap; re-delivery of chunk 0 stays a no-op.
	require.Equal(t, http.StatusOK, env.uploadChunk(t, sessionID, 1, payload[chunkSize:2*chunkSize]).StatusCode)
	require.Equal(t, http.StatusOK, env.uploadChunk(t, sessionID, 0, payload[:chunkSize]).StatusCode)

	resp, _ = env.postJSON(t, "/api/chunked/complete", map[string]any{"session_id": sessionID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Reassembly is asynchronous.
	var final map[string]any
	require.Eventually(t, func() bool {
		_, body := env.get(t, "/api/chunked/status/"+sessionID)
		final = body["session"].(map[string]any)
		return final["status"] == string(upload.StatusCompleted)
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, float64(len(payload)), final["final_size"])
	require.NotEmpty(t, final["file_hash"])

	reassembled, err := os.ReadFile(final["final_path"].(string))
	require.NoError(t, err)
	require.Equal(t, payload, reassembled)
}

func TestCreateJob_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp, _ := env.postJSON(t, "/api/jobs", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/jobs", map[string]any{"source_url": "https://x", "upload_id": "y"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/jobs", map[string]any{"upload_id": "does-not-exist"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp, body := env.postJSON(t, "/api/jobs", map[string]any{"source_url": "https://example.com/ep1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		_, body := env.get(t, "/api/jobs/"+jobID)
		return body["status"] == string(types.JobComplete)
	}, 5*time.Second, 20*time.Millisecond)

	// Listing includes the job.
	resp, body = env.get(t, "/api/jobs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["jobs"])

	// Word-level view: ten one-second words.
	resp, body = env.get(t, "/api/jobs/"+jobID+"/words")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(10), body["word_count"])

	resp, body = env.get(t, "/api/jobs/"+jobID+"/words?start=2&end=4")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["words"], 2)

	// Boundary edit.
	resp, body = env.postJSON(t, "/api/jobs/"+jobID+"/clips/0/words", map[string]any{
		"start_word_index": 2,
		"end_word_index":   6,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clip := body["clip"].(map[string]any)
	require.Equal(t, "00:02", clip["start_timestamp"])
	require.Equal(t, "00:07", clip["end_timestamp"])
	require.Equal(t, true, body["can_extend_start"])

	// Render.
	resp, body = env.postJSON(t, "/api/jobs/"+jobID+"/clips/0/render", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.FileExists(t, body["artifact_path"].(string))

	// Bad edit requests map onto the taxonomy.
	resp, _ = env.postJSON(t, "/api/jobs/"+jobID+"/clips/0/words", map[string]any{
		"start_word_index": 8,
		"end_word_index":   2,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/jobs/"+jobID+"/clips/9/words", map[string]any{
		"start_word_index": 0,
		"end_word_index":   1,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWordsBeforeTranscriptConflicts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.jobs.Create(&types.Job{ID: "pending", Status: types.JobQueued}))

	resp, _ := env.get(t, "/api/jobs/pending/words")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.get(t, "/api/jobs/nope/words")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
