package subtitle

import (
	"sort"
	"strings"

	"github.com/bnema/mediafetch/internal/domain"
	"golang.org/x/text/language"
)

// Preferences drives SelectBest.
type Preferences struct {
	Target    string
	Fallbacks []string
}

const anyLanguageTier = 1 << 20

// SelectBest picks the subtitle to process. Order: target language as srt,
// as vtt, in any other format; then a variant of the target sharing its
// base language and script (zh-CN for zh-Hans); then each fallback
// language in order; then anything. Equal candidates are decided by path so
// the choice does not depend on directory listing order.
func SelectBest(files []domain.SubtitleFile, prefs Preferences) (domain.SubtitleFile, bool) {
	if len(files) == 0 {
		return domain.SubtitleFile{}, false
	}

	type candidate struct {
		file   domain.SubtitleFile
		tier   int
		format int
	}
	cands := make([]candidate, 0, len(files))
	for _, f := range files {
		cands = append(cands, candidate{file: f, tier: languageTier(f.Language, prefs), format: formatRank(f.Format)})
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.format != b.format {
			return a.format < b.format
		}
		return a.file.Path < b.file.Path
	})
	return cands[0].file, true
}

func languageTier(lang string, prefs Preferences) int {
	switch {
	case SameTag(lang, prefs.Target):
		return 0
	case SameBase(lang, prefs.Target):
		return 1
	}
	for i, fb := range prefs.Fallbacks {
		if SameTag(lang, fb) || SameBase(lang, fb) {
			return 2 + i
		}
	}
	return anyLanguageTier
}

func formatRank(f domain.SubtitleFormat) int {
	switch f {
	case domain.SubtitleSRT:
		return 0
	case domain.SubtitleVTT:
		return 1
	default:
		return 2
	}
}

// SameTag compares two language tags case-insensitively.
func SameTag(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// SameBase reports whether two tags share base language and script, so
// zh-CN matches zh-Hans but not zh-TW, and en-US matches en.
func SameBase(a, b string) bool {
	ta, okA := parseTag(a)
	tb, okB := parseTag(b)
	if !okA || !okB {
		return false
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	if baseA != baseB {
		return false
	}
	scriptA, _ := ta.Script()
	scriptB, _ := tb.Script()
	return scriptA == scriptB
}

// parseTag tolerates the extractor's private suffixes such as "en-orig".
func parseTag(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, false
	}
	if tag, err := language.Parse(s); err == nil {
		return tag, true
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		if tag, err := language.Parse(s[:i]); err == nil {
			return tag, true
		}
	}
	return language.Und, false
}

// IsTarget reports whether a subtitle already is in the target language and
// needs no translation.
func IsTarget(lang, target string) bool {
	return SameTag(lang, target) || SameBase(lang, target)
}
