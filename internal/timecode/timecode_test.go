package timecode

import "testing"

func TestFormat(t *testing.T) {
	tests := map[float64]string{
		0:      "00:00",
		61.9:   "01:01",
		599:    "09:59",
		3599:   "59:59",
		3600:   "01:00:00",
		3725:   "01:02:05",
		-4:     "00:00",
		7322.5: "02:02:02",
	}
	for in, want := range tests {
		if got := Format(in); got != want {
			t.Fatalf("Format(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:00", 0, false},
		{"01:01", 61, false},
		{"12:34", 754, false},
		{"01:02:05", 3725, false},
		{"02:02:02.5", 7322.5, false},
		{"42", 42, false},
		{" 10:00 ", 600, false},
		{"", 0, true},
		{"1:2:3:4", 0, true},
		{"aa:bb", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, sec := range []float64{0, 59, 60, 3599, 3600, 7200, 45296} {
		got, err := Parse(Format(sec))
		if err != nil {
			t.Fatalf("round trip %v: %v", sec, err)
		}
		if got != sec {
			t.Fatalf("round trip %v: got %v", sec, got)
		}
	}
}
