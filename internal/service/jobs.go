package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/bnema/mediafetch/internal/subtitle"
)

// outputTemplate names downloads after the media title, capped in bytes so
// long titles stay under filesystem limits.
const outputTemplate = "%(title).200B.%(ext)s"

const defaultHistoryLimit = 20

// CredentialSource hands out the credential for the next job.
type CredentialSource interface {
	Next() (domain.Credential, bool)
}

// SubtitleRunner post-processes a downloaded video.
type SubtitleRunner interface {
	Run(ctx context.Context, req subtitle.Request) subtitle.Result
}

type ArtifactKind string

const (
	ArtifactBest     ArtifactKind = ""
	ArtifactOriginal ArtifactKind = "original"
	ArtifactBurned   ArtifactKind = "burned"
)

type SubmitRequest struct {
	URL          string
	Quality      domain.Quality
	BurnSubtitle bool
	OwnerID      string
}

type JobServiceConfig struct {
	DownloadDir string
	Retention   time.Duration
}

// JobService owns the lifecycle of fetch jobs from submission to cleanup.
type JobService struct {
	store       port.JobStore
	scheduler   *Scheduler
	credentials CredentialSource
	extractor   port.Extractor
	transcoder  port.Transcoder
	subtitles   SubtitleRunner
	cfg         JobServiceConfig
}

// NewJobService wires the orchestrator. subtitles may be nil, in which case
// burn-in requests finish with the original file only.
func NewJobService(
	store port.JobStore,
	scheduler *Scheduler,
	credentials CredentialSource,
	extractor port.Extractor,
	transcoder port.Transcoder,
	subtitles SubtitleRunner,
	cfg JobServiceConfig,
) *JobService {
	return &JobService{
		store:       store,
		scheduler:   scheduler,
		credentials: credentials,
		extractor:   extractor,
		transcoder:  transcoder,
		subtitles:   subtitles,
		cfg:         cfg,
	}
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, logger.SanitizeForLog(raw))
	}
	return raw, nil
}

// Submit records a new job and hands it to the scheduler. The returned
// snapshot is pending, queued or already downloading.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	rawURL, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}
	if req.Quality == "" {
		req.Quality = domain.QualityBest
	}

	job := domain.NewJob(rawURL, req.Quality, req.BurnSubtitle, req.OwnerID)
	job.Dir = filepath.Join(s.cfg.DownloadDir, job.ID)
	if err := s.store.Create(job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	logger.WithJob(job.ID).Infof("Submitted %s (quality=%s, burn=%t)", logger.SanitizeForLog(rawURL), job.Quality, job.BurnSubtitle)

	id := job.ID
	if err := s.scheduler.Submit(id, func(ctx context.Context) { s.process(ctx, id) }); err != nil {
		s.fail(id, err)
		return nil, err
	}
	return s.store.Get(id)
}

// Get returns the job when the caller may see it. Jobs of other callers
// are reported as not found.
func (s *JobService) Get(id, callerID string) (*domain.Job, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !job.VisibleTo(callerID) {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// History returns the caller's finished jobs, newest first.
func (s *JobService) History(callerID string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	jobs, err := s.store.List()
	if err != nil {
		return nil, err
	}
	var out []*domain.Job
	for _, j := range jobs {
		if !j.Status.IsTerminal() || !j.VisibleTo(callerID) {
			continue
		}
		out = append(out, j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ArtifactPath resolves a finished job's file. ArtifactBest prefers the
// burned copy.
func (s *JobService) ArtifactPath(id, callerID string, kind ArtifactKind) (path, name string, err error) {
	job, err := s.Get(id, callerID)
	if err != nil {
		return "", "", err
	}
	if job.Status != domain.JobStatusDone {
		return "", "", domain.ErrNotReady
	}

	switch kind {
	case ArtifactOriginal:
		path, name = job.OriginalPath, job.OriginalName
	case ArtifactBurned:
		path, name = job.BurnedPath, job.BurnedName
	case ArtifactBest:
		path, name = job.OriginalPath, job.OriginalName
		if job.BurnedPath != "" {
			path, name = job.BurnedPath, job.BurnedName
		}
	default:
		return "", "", fmt.Errorf("%w: artifact %q", domain.ErrNotFound, kind)
	}

	if path == "" {
		return "", "", domain.ErrNotFound
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return path, name, nil
}

// Info previews a URL without downloading it.
func (s *JobService) Info(ctx context.Context, rawURL string) (domain.MediaInfo, error) {
	rawURL, err := ValidateURL(rawURL)
	if err != nil {
		return domain.MediaInfo{}, err
	}
	var cookiePath string
	if cred, ok := s.credentials.Next(); ok {
		cookiePath = cred.Path
	}
	return s.extractor.Info(ctx, rawURL, cookiePath)
}

// Cleanup removes finished jobs older than the retention window together
// with their working directories. It returns how many were removed.
func (s *JobService) Cleanup(now time.Time) (int, error) {
	expired, err := s.store.ListExpired(s.cfg.Retention, now)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, job := range expired {
		if job.Dir != "" {
			if err := os.RemoveAll(job.Dir); err != nil {
				logger.WithJob(job.ID).Warnf("Cannot remove job directory: %v", err)
				continue
			}
		}
		if err := s.store.Delete(job.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.WithJob(job.ID).Warnf("Cannot delete job: %v", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info.Printf("Cleaned up %d expired jobs", removed)
	}
	return removed, nil
}

func (s *JobService) process(ctx context.Context, id string) {
	log := logger.WithJob(id)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Worker panicked: %v\n%s", r, debug.Stack())
			s.fail(id, fmt.Errorf("internal error: %v", r))
		}
	}()

	job, err := s.store.Get(id)
	if err != nil {
		log.Errorf("Job vanished before start: %v", err)
		return
	}
	if err := os.MkdirAll(job.Dir, 0755); err != nil {
		s.fail(id, fmt.Errorf("create job directory: %w", err))
		return
	}

	var cookiePath string
	if cred, ok := s.credentials.Next(); ok {
		cookiePath = cred.Path
		log.Infof("Using credential %s", cred.ID)
	}

	downloadBand, translateBand, burnBand := domain.Bands(job.BurnSubtitle)

	output, err := s.download(ctx, job, cookiePath, downloadBand)
	if err != nil {
		s.fail(id, err)
		return
	}
	if _, err := s.store.Apply(id, domain.JobUpdate{}.WithStatus(domain.JobStatusMerging)); err != nil {
		log.Warnf("Cannot mark job merging: %v", err)
	}

	if job.Quality == domain.QualityAudio && !strings.EqualFold(filepath.Ext(output), ".mp3") {
		mp3 := strings.TrimSuffix(output, filepath.Ext(output)) + ".mp3"
		if err := s.transcoder.ExtractAudio(ctx, output, mp3); err != nil {
			s.fail(id, fmt.Errorf("extract audio: %w", err))
			return
		}
		_ = os.Remove(output)
		output = mp3
	}

	original := domain.JobUpdate{}.WithOriginal(output, filepath.Base(output))
	if _, err := s.store.Apply(id, original); err != nil {
		s.fail(id, err)
		return
	}

	final := domain.JobUpdate{}.WithStatus(domain.JobStatusDone)
	if job.BurnSubtitle && s.subtitles != nil {
		res := s.subtitles.Run(ctx, subtitle.Request{
			JobID:      id,
			URL:        job.URL,
			Dir:        job.Dir,
			VideoPath:  output,
			CookiePath: cookiePath,
			OnProgress: func(stage subtitle.Stage, pct float64) {
				s.stageProgress(id, stage, pct, translateBand, burnBand)
			},
		})
		if res.BurnedPath != "" {
			final = final.WithBurned(res.BurnedPath, filepath.Base(res.BurnedPath))
		}
		if res.BurnErr != nil {
			final = final.WithBurnError(res.BurnErr.Error())
		}
	}

	done, err := s.store.Apply(id, final)
	if err != nil {
		log.Errorf("Cannot finish job: %v", err)
		return
	}
	log.Infof("Done: %s", logger.SanitizeForLog(done.OriginalName))
}

// download runs the extractor once with the requested format and, when
// the source does not offer it, once more with the unrestricted format.
// It returns the path of the downloaded media file.
func (s *JobService) download(ctx context.Context, job *domain.Job, cookiePath string, band domain.ProgressBand) (string, error) {
	log := logger.WithJob(job.ID)
	format := job.Quality.FormatExpression()

	err := s.fetch(ctx, job, format, cookiePath, band)
	if errors.Is(err, domain.ErrFormatUnavailable) && format != domain.FallbackFormat {
		log.Warnf("Format %q unavailable, retrying with %q", format, domain.FallbackFormat)
		if cerr := clearDir(job.Dir); cerr != nil {
			return "", fmt.Errorf("clear partial download: %w", cerr)
		}
		err = s.fetch(ctx, job, domain.FallbackFormat, cookiePath, band)
	}
	if err != nil {
		return "", err
	}
	return findOutput(job.Dir)
}

func (s *JobService) fetch(ctx context.Context, job *domain.Job, format, cookiePath string, band domain.ProgressBand) error {
	// After a stream finishes the job shows merging; later streams only
	// update speed and eta.
	merging := false
	result, err := s.extractor.Download(ctx, port.DownloadRequest{
		URL:            job.URL,
		Format:         format,
		OutputTemplate: filepath.Join(job.Dir, outputTemplate),
		CookiePath:     cookiePath,
		Progress: func(p port.DownloadProgress) {
			update := domain.JobUpdate{}.WithSpeed(p.Speed).WithETA(p.ETA)
			switch {
			case p.Status == "finished":
				merging = true
				update = update.WithStatus(domain.JobStatusMerging).WithProgress(band.Hi).WithStageProgress(100)
			case !merging:
				update = update.WithProgress(band.Map(p.Percent)).WithStageProgress(int(p.Percent))
			}
			if _, err := s.store.Apply(job.ID, update); err != nil {
				logger.WithJob(job.ID).Debugf("Progress update rejected: %v", err)
			}
		},
	})
	if err != nil {
		return err
	}
	if result.Title != "" {
		if _, err := s.store.Apply(job.ID, domain.JobUpdate{}.WithTitle(result.Title)); err != nil {
			logger.WithJob(job.ID).Debugf("Title update rejected: %v", err)
		}
	}
	return nil
}

func (s *JobService) stageProgress(id string, stage subtitle.Stage, pct float64, translateBand, burnBand domain.ProgressBand) {
	var update domain.JobUpdate
	switch stage {
	case subtitle.StageTranslate:
		update = update.WithStatus(domain.JobStatusTranslating).WithProgress(translateBand.Map(pct))
	case subtitle.StageBurn:
		update = update.WithStatus(domain.JobStatusBurning).WithProgress(burnBand.Map(pct))
	default:
		return
	}
	update = update.WithStageProgress(int(pct))
	if _, err := s.store.Apply(id, update); err != nil {
		logger.WithJob(id).Debugf("Stage update rejected: %v", err)
	}
}

func (s *JobService) fail(id string, err error) {
	update := domain.JobUpdate{}.WithStatus(domain.JobStatusError).WithError(err.Error())
	if _, aerr := s.store.Apply(id, update); aerr != nil {
		logger.WithJob(id).Warnf("Cannot record failure %q: %v", err, aerr)
		return
	}
	logger.WithJob(id).Errorf("Failed: %s", logger.SanitizeForLog(err.Error()))
}

// findOutput picks the largest media file in dir. Subtitles, partial
// downloads and the burn copy are ignored.
func findOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read job directory: %w", err)
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || isPartial(name) || domain.IsSubtitleExt(name) || name == subtitle.BurnCopyName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, name), info.Size()
		}
	}
	if best == "" {
		return "", domain.ErrNoOutput
	}
	return best, nil
}

func isPartial(name string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".tmp", ".temp"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".part-Frag")
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
