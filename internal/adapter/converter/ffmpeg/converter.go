package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/command"
	"github.com/bnema/mediafetch/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

type Converter struct {
	ffmpegPath  string
	ffprobePath string
	runner      command.Runner
}

func NewConverter(ffmpegPath, ffprobePath string) *Converter {
	return newConverter(ffmpegPath, ffprobePath, command.ExecRunner{})
}

func newConverter(ffmpegPath, ffprobePath string, runner command.Runner) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Converter{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner}
}

func validatePair(inputPath, outputPath string) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	return nil
}

// ExtractAudio transcodes the audio track to MP3 at 192 kbit/s.
func (c *Converter) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if err := validatePair(inputPath, outputPath); err != nil {
		return err
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-y", outputPath,
	}
	return c.ffmpeg(ctx, command.Spec{Args: args})
}

// ConvertSubtitle rewrites any subtitle format ffmpeg can read as SubRip.
func (c *Converter) ConvertSubtitle(ctx context.Context, inputPath, outputPath string) error {
	if err := validatePair(inputPath, outputPath); err != nil {
		return err
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-f", "srt",
		"-y", outputPath,
	}
	return c.ffmpeg(ctx, command.Spec{Args: args})
}

// BurnSubtitles renders the subtitle into the picture. The subtitles filter
// is given the bare file name and ffmpeg runs from the subtitle's
// directory, so no path escaping is needed inside the filter graph.
func (c *Converter) BurnSubtitles(ctx context.Context, req port.BurnRequest) error {
	if err := validatePair(req.VideoPath, req.OutputPath); err != nil {
		return err
	}
	if err := validatePath(req.SubtitlePath); err != nil {
		return fmt.Errorf("invalid subtitle path: %w", err)
	}

	videoPath, err := filepath.Abs(req.VideoPath)
	if err != nil {
		return err
	}
	outputPath, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return err
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", burnFilter(filepath.Base(req.SubtitlePath), req.Style),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-y", outputPath,
	}

	var onLine func(string)
	if req.Progress != nil && req.Duration > 0 {
		onLine = func(line string) {
			if pct, ok := parseProgressLine(line, req.Duration); ok {
				req.Progress(pct)
			}
		}
	}
	return c.ffmpeg(ctx, command.Spec{Args: args, Dir: filepath.Dir(req.SubtitlePath), OnLine: onLine})
}

func burnFilter(subtitleName string, style domain.SubtitleStyle) string {
	return fmt.Sprintf("subtitles=%s:force_style='%s'", subtitleName, style.ForceStyle())
}

// parseProgressLine turns an ffmpeg -progress key=value line into a
// percentage of duration. out_time_ms is in microseconds despite its name.
func parseProgressLine(line string, duration float64) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || (key != "out_time_us" && key != "out_time_ms") {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	pct := float64(us) / 1e6 / duration * 100
	return min(pct, 100), true
}

// Duration probes the media length in seconds.
func (c *Converter) Duration(ctx context.Context, path string) (float64, error) {
	probe, err := c.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	d := probe.DurationSeconds()
	if d <= 0 {
		return 0, fmt.Errorf("no duration in probe of %s", filepath.Base(path))
	}
	return d, nil
}

func (c *Converter) Probe(ctx context.Context, path string) (*domain.ProbeResult, error) {
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	res, err := c.runner.Run(ctx, command.Spec{Name: c.ffprobePath, Args: args})
	if err != nil {
		return nil, command.Error(ctx, c.ffprobePath, res, err)
	}

	var probe domain.ProbeResult
	if err := json.Unmarshal([]byte(res.Stdout), &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	probe.RawJSON = res.Stdout
	return &probe, nil
}

// Version returns the first line of ffmpeg -version.
func (c *Converter) Version(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, command.Spec{Name: c.ffmpegPath, Args: []string{"-version"}})
	if err != nil {
		return "", command.Error(ctx, c.ffmpegPath, res, err)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return first, nil
}

func (c *Converter) ffmpeg(ctx context.Context, spec command.Spec) error {
	spec.Name = c.ffmpegPath
	res, err := c.runner.Run(ctx, spec)
	if err != nil {
		return command.Error(ctx, c.ffmpegPath, res, err)
	}
	return nil
}

var _ port.Transcoder = (*Converter)(nil)
