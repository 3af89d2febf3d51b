package port

import (
	"context"

	"github.com/bnema/mediafetch/internal/domain"
)

type BurnRequest struct {
	VideoPath    string
	SubtitlePath string
	OutputPath   string
	Style        domain.SubtitleStyle
	// Duration of the input in seconds, used to turn elapsed time into a
	// percentage. Zero disables progress reporting.
	Duration float64
	Progress func(percent float64)
}

type Transcoder interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
	ConvertSubtitle(ctx context.Context, inputPath, outputPath string) error
	BurnSubtitles(ctx context.Context, req BurnRequest) error
	Duration(ctx context.Context, path string) (float64, error)
}
