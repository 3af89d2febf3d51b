// Package templates renders the HTML pages served next to the JSON API.
package templates

import "github.com/bnema/mediafetch/internal/domain"

//go:generate templ generate

// QualityOption is one entry of the quality selector.
type QualityOption struct {
	Value domain.Quality
	Label string
}

var Qualities = []QualityOption{
	{Value: domain.QualityBest, Label: "Best"},
	{Value: domain.Quality1080p, Label: "1080p"},
	{Value: domain.Quality720p, Label: "720p"},
	{Value: domain.Quality480p, Label: "480p"},
	{Value: domain.QualityAudio, Label: "Audio (mp3)"},
}
