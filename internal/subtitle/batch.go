package subtitle

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Separator joins the texts of one batch. Translation engines leave it
// mostly alone but sometimes collapse or duplicate the bars, or turn them
// into full-width bars.
const Separator = " ||| "

var separatorPattern = regexp.MustCompile(`\s*[|｜](?:\s*[|｜])*\s*`)

// lineBreak stands in for a line break inside a block while it travels in
// a batch. Engines keep markup tags but reflow plain newlines.
const lineBreak = " <br> "

var lineBreakPattern = regexp.MustCompile(`(?i)\s*<\s*br\s*/?\s*>\s*`)

const (
	DefaultBatchSize = 15
	DefaultMaxChars  = 4500
)

// Batches splits n items into consecutive index ranges of at most size.
func Batches(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// JoinBatch combines texts for a single translation call. Bars inside the
// texts would be taken for separators on the way back, so they are
// replaced. Line breaks become a <br> marker that SplitBatch turns back
// into newlines.
func JoinBatch(texts []string) string {
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		t = strings.ReplaceAll(t, "|", "/")
		t = strings.ReplaceAll(t, "｜", "/")
		var lines []string
		for _, line := range strings.Split(t, "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
		cleaned[i] = strings.Join(lines, lineBreak)
	}
	return strings.Join(cleaned, Separator)
}

// SplitBatch splits a translated batch back into n parts. ok is false when
// the count does not match, in which case the caller falls back to one
// call per block.
func SplitBatch(translated string, n int) ([]string, bool) {
	translated = strings.TrimSpace(translated)
	// A leading or trailing separator produced by the engine is noise.
	translated = strings.Trim(translated, "|｜ \t\n")
	parts := separatorPattern.Split(translated, -1)
	for i := range parts {
		p := lineBreakPattern.ReplaceAllString(parts[i], "\n")
		parts[i] = strings.TrimSpace(p)
	}
	if len(parts) != n {
		return nil, false
	}
	return parts, true
}

// TruncateRunes cuts s to at most limit characters.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
