package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`, false},
		{"fenced", "```json\n[1,2]\n```", "[1,2]", false},
		{"surrounded by prose", "Here you go:\n[1,2]\nEnjoy!", "[1,2]", false},
		{"no array", "sorry, I cannot do that", "", true},
		{"empty", "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONArray(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseClips_Coercion(t *testing.T) {
	t.Parallel()

	content := `[
		{"start_timestamp":"01:00","end_timestamp":"02:30","duration_minutes":99,
		 "titles":["How to win","ok","fine"],"quote":"q","excerpt":"e","rationale":"r"},
		{"start_timestamp":90,"end_timestamp":150,"title":"only one title"},
		{"start_timestamp":"05:00","end_timestamp":"04:00"}
	]`
	clips := ParseClips(content)
	require.Len(t, clips, 2, "clip with end before start must be dropped")

	first := clips[0]
	require.Equal(t, "01:00", first.StartTimestamp)
	require.Equal(t, "02:30", first.EndTimestamp)
	require.InDelta(t, 1.5, first.DurationMinutes, 1e-9, "duration is recomputed, not trusted")
	require.Len(t, first.Titles, 3)
	require.Equal(t, "How to win", first.Titles[0], "pattern-scored title ranks first")

	second := clips[1]
	require.Equal(t, "01:30", second.StartTimestamp, "numeric timestamps become formatted strings")
	require.Equal(t, "02:30", second.EndTimestamp)
	require.Len(t, second.Titles, 3, "single title is padded to three variants")
}

func TestParseClips_Unusable(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "not json at all", "[]", `[{"start_timestamp":"02:00","end_timestamp":"01:00"}]`} {
		clips := ParseClips(content)
		require.Len(t, clips, 1)
		require.Equal(t, "00:00", clips[0].StartTimestamp)
		require.Equal(t, "01:00", clips[0].EndTimestamp)
	}
}

func TestFallbackClips_Bounded(t *testing.T) {
	t.Parallel()

	clips := FallbackClips(42)
	require.Len(t, clips, 1)
	require.Equal(t, "00:42", clips[0].EndTimestamp)
	require.InDelta(t, 0.7, clips[0].DurationMinutes, 1e-9)
}

func TestCandidates_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"[{\"start_timestamp\":\"00:10\",\"end_timestamp\":\"01:10\",\"titles\":[\"t1\",\"t2\",\"t3\"]}]"}}]}`))
	}))
	defer srv.Close()

	a := New("sk-test", "test-model", srv.URL)
	clips, err := a.Candidates(context.Background(), "transcript text", "audience")
	require.NoError(t, err)
	require.Len(t, clips, 1)
	require.Equal(t, "00:10", clips[0].StartTimestamp)
	require.InDelta(t, 1.0, clips[0].DurationMinutes, 1e-9)
}

func TestCandidates_ErrorRedactsSecrets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key sk-test-secret"}`))
	}))
	defer srv.Close()

	a := New("sk-test-secret", "test-model", srv.URL)
	_, err := a.Candidates(context.Background(), "t", "a")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "sk-test-secret")
	require.Contains(t, err.Error(), "401")
}

func TestMessageContentToString_Parts(t *testing.T) {
	t.Parallel()

	got, err := messageContentToString([]any{
		map[string]any{"type": "text", "text": "[1,"},
		map[string]any{"type": "text", "text": "2]"},
	})
	require.NoError(t, err)
	require.Equal(t, "[1,2]", got)

	_, err = messageContentToString(42.0)
	require.Error(t, err)
}
