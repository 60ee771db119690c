package oracle

import "testing"

func TestExtractScore(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2-1 (FT)", "2-1", true},
		{"2 - 1 (Full time)", "2-1", true},
		{"2:1 (FT)", "2-1", true},
		{"0-0 (Live)", "0-0", true},
		{"Final score 3-2 after extra time", "3-2", true},
		{"20:45", "", false},
		{"9:30", "", false},
		{"Postponed", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractScore(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ExtractScore(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestIsFinished(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"2-1 (FT)", true},
		{"2-1 (Full time)", true},
		{"2-1 (Full-time)", true},
		{"Ended", true},
		{"3-3 (AET)", true},
		{"2-2 (Pens)", true},
		{"1-0 after penalties", true},
		{"Match ends, Chelsea 2, Arsenal 1", true},
		{"2-1 (Live)", false},
		{"64'", false},
		{"20:45", false},
		{"fifteen minutes played", false},
	}
	for _, tc := range cases {
		if got := IsFinished(tc.in); got != tc.want {
			t.Errorf("IsFinished(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
