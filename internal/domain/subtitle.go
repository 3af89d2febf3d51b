package domain

import (
	"path/filepath"
	"strconv"
	"strings"
)

type SubtitleFormat string

const (
	SubtitleSRT   SubtitleFormat = "srt"
	SubtitleVTT   SubtitleFormat = "vtt"
	SubtitleASS   SubtitleFormat = "ass"
	SubtitleTTML  SubtitleFormat = "ttml"
	SubtitleSRV3  SubtitleFormat = "srv3"
	SubtitleJSON3 SubtitleFormat = "json3"
)

var subtitleFormats = map[SubtitleFormat]bool{
	SubtitleSRT: true, SubtitleVTT: true, SubtitleASS: true,
	SubtitleTTML: true, SubtitleSRV3: true, SubtitleJSON3: true,
}

// SubtitleFile is a subtitle track found in a job directory.
type SubtitleFile struct {
	Path     string
	Language string
	Format   SubtitleFormat
}

// ParseSubtitleFile recognizes the extractor naming scheme
// "<name>.<lang>.<ext>". ok is false for anything that is not a subtitle.
func ParseSubtitleFile(path string) (SubtitleFile, bool) {
	base := filepath.Base(path)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	format := SubtitleFormat(ext)
	if !subtitleFormats[format] {
		return SubtitleFile{}, false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	lang := ""
	if i := strings.LastIndex(stem, "."); i >= 0 {
		lang = stem[i+1:]
	}
	return SubtitleFile{Path: path, Language: lang, Format: format}, true
}

// IsSubtitleExt reports whether the file extension belongs to a subtitle.
func IsSubtitleExt(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return subtitleFormats[SubtitleFormat(ext)]
}

// SubtitleStyle controls how burned-in text is rendered.
type SubtitleStyle struct {
	FontName     string
	FontSize     int
	Outline      int
	MarginV      int
	PrimaryColor string
	OutlineColor string
}

func DefaultSubtitleStyle() SubtitleStyle {
	return SubtitleStyle{
		FontName:     "Noto Sans CJK SC",
		FontSize:     22,
		Outline:      2,
		MarginV:      30,
		PrimaryColor: "&H00FFFFFF",
		OutlineColor: "&H00000000",
	}
}

// ForceStyle renders the style as an ffmpeg subtitles filter force_style value.
func (s SubtitleStyle) ForceStyle() string {
	parts := []string{
		"FontName=" + s.FontName,
		"FontSize=" + strconv.Itoa(s.FontSize),
		"PrimaryColour=" + s.PrimaryColor,
		"OutlineColour=" + s.OutlineColor,
		"BorderStyle=1",
		"Outline=" + strconv.Itoa(s.Outline),
		"MarginV=" + strconv.Itoa(s.MarginV),
	}
	return strings.Join(parts, ",")
}
