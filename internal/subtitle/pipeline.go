package subtitle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/bnema/mediafetch/internal/retry"
)

// Stage names the externally visible pipeline stages.
type Stage string

const (
	StageTranslate Stage = "translating"
	StageBurn      Stage = "burning"
)

// BurnCopyName is the simplified subtitle name handed to the transcoder.
// Titles often contain quotes, colons and brackets that break the
// subtitles filter argument.
const BurnCopyName = "burn_subtitle.srt"

const burnStderrTail = 400

// BurnError is the non-fatal outcome of a failed burn-in.
type BurnError struct {
	Err    error
	Stderr string
}

func (e *BurnError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("subtitle burn-in failed: %v", e.Err)
	}
	return fmt.Sprintf("subtitle burn-in failed: %s", e.Stderr)
}

func (e *BurnError) Unwrap() error {
	return e.Err
}

type Config struct {
	TargetLanguage    string
	FallbackLanguages []string
	BatchSize         int
	MaxChars          int
	Gap               time.Duration
	MinDuration       time.Duration
	Style             domain.SubtitleStyle
	Retry             retry.Policy
}

// DefaultRetry is three acquisition attempts, waiting 2s then 4s.
func DefaultRetry() retry.Policy {
	return retry.Policy{Attempts: 3, Base: 2 * time.Second, Max: 30 * time.Second}
}

type Request struct {
	JobID      string
	URL        string
	Dir        string
	VideoPath  string
	CookiePath string
	// OnProgress receives the stage and its raw percentage.
	OnProgress func(stage Stage, percent float64)
}

type Result struct {
	// Subtitle is the final SubRip file, empty when none was found.
	Subtitle   string
	Language   string
	Translated bool
	Repaired   int
	BurnedPath string
	// BurnErr is set when burn-in ran and failed. It is never fatal.
	BurnErr *BurnError
}

// Pipeline acquires, normalizes, translates, repairs and burns a subtitle.
// Every stage degrades instead of failing the job.
type Pipeline struct {
	extractor  port.Extractor
	transcoder port.Transcoder
	translator port.Translator
	cfg        Config
}

// NewPipeline builds a pipeline. translator may be nil to disable
// translation.
func NewPipeline(extractor port.Extractor, transcoder port.Transcoder, translator port.Translator, cfg Config) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxChars < 1 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Gap <= 0 {
		cfg.Gap = DefaultGap
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry = DefaultRetry()
	}
	return &Pipeline{
		extractor:  extractor,
		transcoder: transcoder,
		translator: translator,
		cfg:        cfg,
	}
}

func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	log := logger.WithJob(req.JobID)
	var res Result

	file, ok := p.acquire(ctx, req)
	if !ok {
		log.Info("No subtitle available, keeping original only")
		return res
	}
	log.Infof("Using subtitle %s (%s, %s)", logger.SanitizeForLog(filepath.Base(file.Path)), file.Language, file.Format)

	srtPath, err := p.normalize(ctx, file)
	if err != nil {
		log.Warnf("Subtitle conversion failed, skipping burn-in: %v", err)
		return res
	}
	res.Subtitle = srtPath
	res.Language = file.Language

	if p.translator != nil && !IsTarget(file.Language, p.cfg.TargetLanguage) {
		if out, ok := p.translate(ctx, req, srtPath); ok {
			res.Subtitle = out
			res.Language = p.cfg.TargetLanguage
			res.Translated = true
		}
	}

	res.Repaired = p.repair(res.Subtitle)
	if res.Repaired > 0 {
		log.Infof("Repaired %d overlapping subtitle blocks", res.Repaired)
	}

	burned, burnErr := p.burn(ctx, req, res.Subtitle)
	if burnErr != nil {
		log.Warnf("%v", burnErr)
		res.BurnErr = burnErr
		return res
	}
	res.BurnedPath = burned
	return res
}

// acquire asks the extractor for subtitles with retries, then scans the
// job directory for anything usable.
func (p *Pipeline) acquire(ctx context.Context, req Request) (domain.SubtitleFile, bool) {
	langs := append([]string{p.cfg.TargetLanguage}, p.cfg.FallbackLanguages...)
	policy := p.cfg.Retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.WithJob(req.JobID).Warnf("Subtitle download attempt %d failed, retrying in %s: %v", attempt, wait, err)
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		return p.extractor.DownloadSubtitles(ctx, port.SubtitleRequest{
			URL:            req.URL,
			Languages:      langs,
			OutputTemplate: OutputTemplate(req.VideoPath),
			CookiePath:     req.CookiePath,
		})
	})
	if err != nil {
		logger.WithJob(req.JobID).Warnf("Subtitle download gave up: %v", err)
	}

	files, err := ScanDir(req.Dir)
	if err != nil {
		logger.WithJob(req.JobID).Warnf("Subtitle scan failed: %v", err)
		return domain.SubtitleFile{}, false
	}
	return SelectBest(files, Preferences{Target: p.cfg.TargetLanguage, Fallbacks: p.cfg.FallbackLanguages})
}

// OutputTemplate names subtitle files after the video so they read
// "<video name>.<lang>.<ext>". Percent signs are escaped for the extractor.
func OutputTemplate(videoPath string) string {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	stem = strings.ReplaceAll(stem, "%", "%%")
	return filepath.Join(filepath.Dir(videoPath), stem+".%(ext)s")
}

// ScanDir lists subtitle files in dir, skipping the burn copy.
func ScanDir(dir string) ([]domain.SubtitleFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []domain.SubtitleFile
	for _, e := range entries {
		if e.IsDir() || e.Name() == BurnCopyName {
			continue
		}
		if f, ok := domain.ParseSubtitleFile(filepath.Join(dir, e.Name())); ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (p *Pipeline) normalize(ctx context.Context, file domain.SubtitleFile) (string, error) {
	if file.Format == domain.SubtitleSRT {
		return file.Path, nil
	}
	out := strings.TrimSuffix(file.Path, filepath.Ext(file.Path)) + ".srt"
	if err := p.transcoder.ConvertSubtitle(ctx, file.Path, out); err != nil {
		return "", err
	}
	return out, nil
}

// translate writes "<name>.<target>.srt" next to the source file.
func (p *Pipeline) translate(ctx context.Context, req Request, srtPath string) (string, bool) {
	log := logger.WithJob(req.JobID)
	blocks, parseErrs, err := ReadFile(srtPath)
	if err != nil {
		log.Warnf("Cannot read subtitle for translation: %v", err)
		return "", false
	}
	if len(parseErrs) > 0 {
		log.Warnf("Skipped %d malformed subtitle blocks", len(parseErrs))
	}
	if len(blocks) == 0 {
		return "", false
	}

	report(req, StageTranslate, 0)
	translated, stats := Translate(ctx, p.translator, blocks, TranslateOptions{
		Source:    SourceAuto,
		Target:    p.cfg.TargetLanguage,
		BatchSize: p.cfg.BatchSize,
		MaxChars:  p.cfg.MaxChars,
		Progress: func(done, total int) {
			report(req, StageTranslate, float64(done)*100/float64(total))
		},
	})
	if stats.Failed > 0 {
		log.Warnf("Translation kept original text for %d of %d blocks", stats.Failed, stats.Blocks)
	}

	out := translatedPath(srtPath, p.cfg.TargetLanguage)
	if err := WriteFile(out, translated); err != nil {
		log.Warnf("Cannot write translated subtitle: %v", err)
		return "", false
	}
	return out, true
}

func translatedPath(srtPath, target string) string {
	stem := strings.TrimSuffix(srtPath, filepath.Ext(srtPath))
	if f, ok := domain.ParseSubtitleFile(srtPath); ok && f.Language != "" {
		stem = strings.TrimSuffix(stem, "."+f.Language)
	}
	return stem + "." + target + ".srt"
}

// repair rewrites the file with a monotonic timeline and returns the
// number of blocks moved. Unreadable input is left as it is.
func (p *Pipeline) repair(srtPath string) int {
	blocks, _, err := ReadFile(srtPath)
	if err != nil || len(blocks) == 0 {
		return 0
	}
	repaired, fixed := RepairOverlaps(blocks, p.cfg.Gap, p.cfg.MinDuration)
	if err := WriteFile(srtPath, repaired); err != nil {
		logger.Warn.Printf("Cannot write repaired subtitle %s: %v", logger.SanitizeForLog(srtPath), err)
		return 0
	}
	return fixed
}

func (p *Pipeline) burn(ctx context.Context, req Request, srtPath string) (string, *BurnError) {
	copyPath := filepath.Join(req.Dir, BurnCopyName)
	defer func() { _ = os.Remove(copyPath) }()

	if err := copyFile(srtPath, copyPath); err != nil {
		return "", &BurnError{Err: err}
	}

	duration, err := p.transcoder.Duration(ctx, req.VideoPath)
	if err != nil {
		logger.WithJob(req.JobID).Warnf("Cannot probe duration, burn progress disabled: %v", err)
		duration = 0
	}

	out := BurnedPath(req.VideoPath)
	report(req, StageBurn, 0)
	err = p.transcoder.BurnSubtitles(ctx, port.BurnRequest{
		VideoPath:    req.VideoPath,
		SubtitlePath: copyPath,
		OutputPath:   out,
		Style:        p.cfg.Style,
		Duration:     duration,
		Progress: func(percent float64) {
			report(req, StageBurn, min(percent, 99))
		},
	})
	if err != nil {
		_ = os.Remove(out)
		be := &BurnError{Err: err}
		var execErr *domain.ExecError
		if errors.As(err, &execErr) {
			be.Stderr = logger.SanitizeTail(execErr.Stderr, burnStderrTail)
		}
		return "", be
	}
	return out, nil
}

// BurnedPath is where the burned copy of videoPath is written.
func BurnedPath(videoPath string) string {
	ext := filepath.Ext(videoPath)
	if ext == "" {
		ext = ".mp4"
	}
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".burned" + ext
}

func report(req Request, stage Stage, percent float64) {
	if req.OnProgress != nil {
		req.OnProgress(stage, percent)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open subtitle: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create subtitle copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy subtitle: %w", err)
	}
	return out.Close()
}
