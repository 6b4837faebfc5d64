package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw  string
		cc   string
		want string
	}{
		{"0727374660", "254", "+254727374660"},
		{"254727374660", "254", "+254727374660"},
		{"+254727374660", "254", "+254727374660"},
		{"0727 374-660", "254", "+254727374660"},
		{"(072) 737 4660", "254", "+254727374660"},
		{"+1 415 555 0100", "254", "+14155550100"},
		// unknown shape: best-effort plus prefix, gateway decides
		{"12345", "254", "+12345"},
		{"", "254", ""},
		{"   ", "254", ""},
		{"abc", "254", ""},
		{"+", "254", ""},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.raw, tc.cc); got != tc.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tc.raw, tc.cc, got, tc.want)
		}
	}
}
