// Package ytdlp drives the yt-dlp command line tool.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/command"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
)

const (
	progressMarker = "mfprogress"
	titleMarker    = "mftitle"

	progressTemplate = "download:" + progressMarker +
		"|%(progress.status)s|%(progress._percent_str)s|%(progress._speed_str)s|%(progress._eta_str)s"
	titleTemplate = "after_move:" + titleMarker + "|%(title)s"

	subtitleFormats = "srt/vtt/best"
)

var (
	ansiPattern             = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	formatUnavailableMarker = "Requested format is not available"
)

type Extractor struct {
	binary string
	runner command.Runner
}

func NewExtractor(binary string) *Extractor {
	return newExtractor(binary, command.ExecRunner{})
}

func newExtractor(binary string, runner command.Runner) *Extractor {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Extractor{binary: binary, runner: runner}
}

// Download fetches url into req.OutputTemplate. Progress lines are turned
// into req.Progress calls; the final title comes from the post-move print.
func (e *Extractor) Download(ctx context.Context, req port.DownloadRequest) (port.DownloadResult, error) {
	args := []string{
		"--no-playlist",
		"--newline",
		"--progress",
		"--no-check-certificates",
		"-f", req.Format,
		"-o", req.OutputTemplate,
		"--merge-output-format", "mp4",
		"--progress-template", progressTemplate,
		"--print", titleTemplate,
	}
	args = appendCookies(args, req.CookiePath)
	args = append(args, "--", req.URL)

	var result port.DownloadResult
	onLine := func(line string) {
		if p, ok := parseProgress(line); ok {
			if req.Progress != nil {
				req.Progress(p)
			}
			return
		}
		if title, ok := strings.CutPrefix(line, titleMarker+"|"); ok {
			result.Title = strings.TrimSpace(title)
		}
	}

	res, err := e.runner.Run(ctx, command.Spec{Name: e.binary, Args: args, OnLine: onLine})
	if err != nil {
		if strings.Contains(res.Stderr, formatUnavailableMarker) {
			return port.DownloadResult{}, fmt.Errorf("%w: %s", domain.ErrFormatUnavailable, req.Format)
		}
		return port.DownloadResult{}, command.Error(ctx, e.binary, res, err)
	}
	return result, nil
}

// DownloadSubtitles writes manual and automatic subtitles for the given
// languages next to the media, without downloading the media itself.
func (e *Extractor) DownloadSubtitles(ctx context.Context, req port.SubtitleRequest) error {
	if len(req.Languages) == 0 {
		return errors.New("no subtitle languages requested")
	}
	args := []string{
		"--no-playlist",
		"--no-check-certificates",
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", strings.Join(req.Languages, ","),
		"--sub-format", subtitleFormats,
		"-o", req.OutputTemplate,
	}
	args = appendCookies(args, req.CookiePath)
	args = append(args, "--", req.URL)

	res, err := e.runner.Run(ctx, command.Spec{Name: e.binary, Args: args})
	if err != nil {
		return command.Error(ctx, e.binary, res, err)
	}
	return nil
}

type infoJSON struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Uploader  string  `json:"uploader"`
}

// Info reads metadata without downloading. With a cookie path it doubles
// as a credential check.
func (e *Extractor) Info(ctx context.Context, url, cookiePath string) (domain.MediaInfo, error) {
	args := []string{
		"--no-playlist",
		"--no-check-certificates",
		"--no-warnings",
		"--skip-download",
		"--dump-single-json",
	}
	args = appendCookies(args, cookiePath)
	args = append(args, "--", url)

	res, err := e.runner.Run(ctx, command.Spec{Name: e.binary, Args: args})
	if err != nil {
		return domain.MediaInfo{}, command.Error(ctx, e.binary, res, err)
	}

	var info infoJSON
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		logger.Debug.Printf("Unparseable yt-dlp info output: %s", logger.SanitizeTail(res.Stdout, 200))
		return domain.MediaInfo{}, fmt.Errorf("parse yt-dlp info: %w", err)
	}
	return domain.MediaInfo{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
		Uploader:  info.Uploader,
	}, nil
}

// Version returns the first line of yt-dlp --version.
func (e *Extractor) Version(ctx context.Context) (string, error) {
	res, err := e.runner.Run(ctx, command.Spec{Name: e.binary, Args: []string{"--version"}})
	if err != nil {
		return "", command.Error(ctx, e.binary, res, err)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return first, nil
}

func appendCookies(args []string, cookiePath string) []string {
	if cookiePath == "" {
		return args
	}
	return append(args, "--cookies", cookiePath)
}

// parseProgress reads one "mfprogress|status|percent|speed|eta" line.
func parseProgress(line string) (port.DownloadProgress, bool) {
	line = ansiPattern.ReplaceAllString(strings.TrimSpace(line), "")
	fields := strings.Split(line, "|")
	if len(fields) != 5 || fields[0] != progressMarker {
		return port.DownloadProgress{}, false
	}
	p := port.DownloadProgress{
		Status: strings.TrimSpace(fields[1]),
		Speed:  cleanField(fields[3]),
		ETA:    cleanField(fields[4]),
	}
	pct := strings.TrimSuffix(strings.TrimSpace(fields[2]), "%")
	if v, err := strconv.ParseFloat(pct, 64); err == nil {
		p.Percent = max(0, min(v, 100))
	}
	return p, true
}

// cleanField drops yt-dlp's placeholders for unknown values.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "NA", "N/A", "Unknown", "Unknown speed", "Unknown ETA":
		return ""
	}
	return s
}

var _ port.Extractor = (*Extractor)(nil)
