package port

import (
	"context"

	"github.com/bnema/mediafetch/internal/domain"
)

type DownloadProgress struct {
	Status  string
	Percent float64
	Speed   string
	ETA     string
}

type DownloadRequest struct {
	URL            string
	Format         string
	OutputTemplate string
	CookiePath     string
	Progress       func(DownloadProgress)
}

type DownloadResult struct {
	Title string
}

type SubtitleRequest struct {
	URL            string
	Languages      []string
	OutputTemplate string
	CookiePath     string
}

// Extractor fetches remote media. Download returns domain.ErrFormatUnavailable
// when the source does not offer the requested format.
type Extractor interface {
	Download(ctx context.Context, req DownloadRequest) (DownloadResult, error)
	DownloadSubtitles(ctx context.Context, req SubtitleRequest) error
	Info(ctx context.Context, url, cookiePath string) (domain.MediaInfo, error)
}
