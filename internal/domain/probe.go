package domain

import (
	"fmt"
	"strconv"
)

// ProbeResult is the part of ffprobe's JSON output needed to time a burn.
type ProbeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Duration string `json:"duration"`
	} `json:"streams"`
	RawJSON string `json:"-"`
}

// DurationSeconds prefers the container duration and falls back to the
// longest stream, since fragmented downloads often leave the container
// value as N/A.
func (p *ProbeResult) DurationSeconds() float64 {
	if d := parseSeconds(p.Format.Duration); d > 0 {
		return d
	}
	var longest float64
	for _, s := range p.Streams {
		longest = max(longest, parseSeconds(s.Duration))
	}
	return longest
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	if total <= 0 {
		return "0:00"
	}
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func parseSeconds(v string) float64 {
	d, err := strconv.ParseFloat(v, 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
