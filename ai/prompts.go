package ai

import (
	"strings"
	"unicode/utf8"
)

// MaxInputChars caps the text sent for summaries, tags and embeddings.
const MaxInputChars = 8000

const (
	summarizePrompt = "Summarize the following text concisely:\n\n"
	tagsPrompt      = "Generate a list of 5 relevant tags for the following text. Return ONLY a comma-separated list of tags, nothing else.\n\n"
)

// SummarizePrompt builds the summarization prompt for text.
func SummarizePrompt(text string) string {
	return summarizePrompt + Truncate(text, MaxInputChars)
}

// TagsPrompt builds the tag generation prompt for text.
func TagsPrompt(text string) string {
	return tagsPrompt + Truncate(text, MaxInputChars)
}

// ParseTags splits a comma-separated model response into trimmed, non-empty tags.
func ParseTags(response string) []string {
	parts := strings.Split(response, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Truncate returns at most max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
