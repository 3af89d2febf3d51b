package domain

import "strings"

type Quality string

const (
	QualityBest  Quality = "best"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	QualityAudio Quality = "audio"
)

// FallbackFormat is the unrestricted format expression used when the
// requested one is not offered by the source.
const FallbackFormat = "best"

var formatExpressions = map[Quality]string{
	QualityBest:  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best[ext=mp4]/best",
	Quality1080p: "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best[height<=1080]",
	Quality720p:  "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]",
	Quality480p:  "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]",
	QualityAudio: "bestaudio/best",
}

// ParseQuality normalizes a user-supplied quality. Unknown values become best.
func ParseQuality(s string) Quality {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatExpressions[q]; ok {
		return q
	}
	return QualityBest
}

// FormatExpression returns the extractor format selector for the quality.
func (q Quality) FormatExpression() string {
	if expr, ok := formatExpressions[q]; ok {
		return expr
	}
	return formatExpressions[QualityBest]
}

// MediaInfo is the metadata preview of a remote asset.
type MediaInfo struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Uploader  string  `json:"uploader"`
}

// DurationString renders the duration the way the index page shows it.
func (m MediaInfo) DurationString() string {
	if m.Duration <= 0 {
		return ""
	}
	return FormatDuration(m.Duration)
}
