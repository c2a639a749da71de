package ai

import (
	"strings"
	"testing"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"simple", "go, rust, zig", []string{"go", "rust", "zig"}},
		{"empties dropped", " a ,, b , ", []string{"a", "b"}},
		{"single", "solo", []string{"solo"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.response)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseTags() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseTags()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate() = %q, want %q", got, "hé")
	}
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestPrompts(t *testing.T) {
	long := strings.Repeat("x", MaxInputChars+100)

	p := SummarizePrompt(long)
	if !strings.HasPrefix(p, "Summarize the following text concisely:\n\n") {
		t.Errorf("SummarizePrompt() prefix = %q", p[:40])
	}
	if len(p) != len("Summarize the following text concisely:\n\n")+MaxInputChars {
		t.Errorf("SummarizePrompt() did not truncate input")
	}

	if !strings.Contains(TagsPrompt("abc"), "Return ONLY a comma-separated list of tags") {
		t.Errorf("TagsPrompt() missing instruction")
	}
}
