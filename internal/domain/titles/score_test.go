package titles

import "testing"

func TestScore_Table(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		positive bool
	}{
		{"empty", "", false},
		{"plain", "A conversation about farming", false},
		{"listicle", "7 Secrets Nobody Tells You", true},
		{"howto", "How to fix your morning routine", true},
		{"mistake", "The biggest mistake new founders make", true},
		{"versus", "Remote vs office: what the data says", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.title)
			if tt.positive && got <= 0 {
				t.Fatalf("expected score>0, got %v", got)
			}
			if !tt.positive && got != 0 {
				t.Fatalf("expected score==0, got %v", got)
			}
			if got > 1 {
				t.Fatalf("score must be capped at 1, got %v", got)
			}
		})
	}
}

func TestScore_ListicleOutranksBareNumber(t *testing.T) {
	if Score("5 ways to save money") <= Score("Chapter 5 recap") {
		t.Fatalf("listicle should outrank a bare number")
	}
}

func TestRank(t *testing.T) {
	in := []string{
		"A chat with an old friend",
		"10 tricks that changed my life",
		"Why nobody talks about this",
	}
	out := Rank(in)
	if out[0] != "10 tricks that changed my life" {
		t.Fatalf("unexpected best title: %q", out[0])
	}
	if len(out) != 3 {
		t.Fatalf("rank must preserve length, got %d", len(out))
	}
	// input untouched
	if in[0] != "A chat with an old friend" {
		t.Fatalf("rank must not mutate its input")
	}
}
