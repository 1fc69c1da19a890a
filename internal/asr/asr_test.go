package asr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forPelevin/podclip/internal/types"
)

type fakeRecognizer struct {
	byPath map[string]types.Transcript
	calls  int
	err    error
}

func (f *fakeRecognizer) Transcribe(_ context.Context, path string) (types.Transcript, error) {
	f.calls++
	if f.err != nil {
		return types.Transcript{}, f.err
	}
	tr, ok := f.byPath[path]
	if !ok {
		return types.Transcript{}, errors.New("unexpected path " + path)
	}
	return tr, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func TestTranscribe_MultiChunkOffsets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c0 := filepath.Join(dir, "chunk_00000.m4a")
	c1 := filepath.Join(dir, "chunk_00001.m4a")
	touch(t, c0)
	touch(t, c1)

	// A 723 s source split at a 600 s cap: second chunk timestamps are
	// chunk-local and must come back shifted by 600.
	rec := &fakeRecognizer{byPath: map[string]types.Transcript{
		c0: {Segments: []types.Segment{{Text: "part one", Start: 0, End: 599.5}}},
		c1: {Segments: []types.Segment{{
			Text: "part two", Start: 0, End: 123,
			Words: []types.SegmentWord{{Word: "part", Start: 12.0, End: 12.4}},
		}}},
	}}
	svc := New(rec, filepath.Join(dir, "cache"), nil)

	tr, err := svc.Transcribe(context.Background(), "source-id", []types.AudioChunk{
		{Path: c0, OffsetSeconds: 0},
		{Path: c1, OffsetSeconds: 600},
	})
	require.NoError(t, err)
	require.Len(t, tr.Segments, 2)
	require.InDelta(t, 600.0, tr.Segments[1].Start, 1e-9)
	require.InDelta(t, 723.0, tr.Segments[1].End, 1e-9)
	require.InDelta(t, 612.0, tr.Segments[1].Words[0].Start, 1e-9)

	// Consumed split chunks are deleted.
	require.NoFileExists(t, c0)
	require.NoFileExists(t, c1)
}

func TestTranscribe_SingleChunkKeepsAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.m4a")
	touch(t, audio)

	rec := &fakeRecognizer{byPath: map[string]types.Transcript{
		audio: {Segments: []types.Segment{{Text: "hello", Start: 0, End: 1}}},
	}}
	svc := New(rec, filepath.Join(dir, "cache"), nil)

	_, err := svc.Transcribe(context.Background(), "s", []types.AudioChunk{{Path: audio}})
	require.NoError(t, err)
	require.FileExists(t, audio)
}

func TestTranscribe_CacheShortCircuits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.m4a")
	touch(t, audio)

	rec := &fakeRecognizer{byPath: map[string]types.Transcript{
		audio: {Segments: []types.Segment{{Text: "cached once", Start: 0, End: 2}}},
	}}
	svc := New(rec, filepath.Join(dir, "cache"), nil)

	first, err := svc.Transcribe(context.Background(), "same-source", []types.AudioChunk{{Path: audio}})
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)

	// Even a now-failing recognizer is never reached on a cache hit.
	rec.err = errors.New("recognizer down")
	second, err := svc.Transcribe(context.Background(), "same-source", []types.AudioChunk{{Path: audio}})
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)
	require.Equal(t, first, second)
}

func TestTranscribe_ErrorPropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.m4a")
	touch(t, audio)

	svc := New(&fakeRecognizer{err: errors.New("boom")}, filepath.Join(dir, "cache"), nil)
	_, err := svc.Transcribe(context.Background(), "s", []types.AudioChunk{{Path: audio}})
	require.ErrorContains(t, err, "transcribe chunk 1/1")

	_, err = svc.Transcribe(context.Background(), "s", nil)
	require.ErrorContains(t, err, "no audio chunks")
}
