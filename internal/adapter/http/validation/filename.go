package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// maxNameBytes is the usual filesystem limit for one path element.
	maxNameBytes = 255
	maxExtBytes  = 16
	fallbackName = "media"
)

// unsafeNameChars break header quoting, walk paths or are rejected by
// Windows when the CLI saves the file.
const unsafeNameChars = `"\/:*?<>|`

// SanitizeFilename turns a media title into a name that is safe in a
// Content-Disposition header and as a local file name. Unicode titles are
// kept; the result never exceeds 255 bytes and keeps its extension.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError || strings.ContainsRune(unsafeNameChars, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if strings.Trim(name, "_. ") == "" {
		return fallbackName
	}
	return truncateName(name, maxNameBytes)
}

// truncateName cuts name to max bytes on a rune boundary, keeping a short
// extension intact.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxExtBytes {
		ext = ""
	}
	base := name[:len(name)-len(ext)]
	limit := max - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	return strings.TrimSpace(base[:limit]) + ext
}

// ContentDisposition returns an attachment header for a download. Titles
// outside ASCII get an ASCII fallback plus an RFC 5987 filename*.
func ContentDisposition(filename string) string {
	name := SanitizeFilename(filename)
	if isASCII(name) {
		return fmt.Sprintf("attachment; filename=%q", name)
	}
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", asciiFallback(name), url.PathEscape(name))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func asciiFallback(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= utf8.RuneSelf {
			return '_'
		}
		return r
	}, s)
}
