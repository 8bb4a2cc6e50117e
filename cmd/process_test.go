package cmd

import "testing"

func TestModelMatches(t *testing.T) {
	cases := []struct {
		installed, wanted string
		want              bool
	}{
		{"llama3.2-vision:latest", "llama3.2-vision", true},
		{"llama3.2-vision", "llama3.2-vision", true},
		{"llava:13b", "llava", false},
		{"llava:13b", "llava:13b", true},
		{"llava:latest", "llava:7b", false},
	}
	for _, tc := range cases {
		if got := modelMatches(tc.installed, tc.wanted); got != tc.want {
			t.Fatalf("modelMatches(%q, %q) = %v, want %v", tc.installed, tc.wanted, got, tc.want)
		}
	}
}

func TestMarkedName(t *testing.T) {
	if got := markedName("/tmp/race/finish.JPG"); got != "/tmp/race/finish_marked.JPG" {
		t.Fatalf("markedName = %q", got)
	}
}
