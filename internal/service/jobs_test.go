package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/mediafetch/internal/adapter/storage/memory"
	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/bnema/mediafetch/internal/port/mocks"
	"github.com/bnema/mediafetch/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticCredentials struct {
	cred domain.Credential
	ok   bool
}

func (s staticCredentials) Next() (domain.Credential, bool) { return s.cred, s.ok }

type fakeSubtitles struct {
	run func(req subtitle.Request) subtitle.Result
}

func (f fakeSubtitles) Run(_ context.Context, req subtitle.Request) subtitle.Result {
	return f.run(req)
}

// snapshotRecorder keeps every snapshot the store publishes.
type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots []*domain.Job
}

func (r *snapshotRecorder) Publish(_ string, job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, job)
}

func (r *snapshotRecorder) statuses() []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.JobStatus
	for _, s := range r.snapshots {
		if len(out) == 0 || out[len(out)-1] != s.Status {
			out = append(out, s.Status)
		}
	}
	return out
}

type jobFixture struct {
	svc        *JobService
	store      *memory.Store
	recorder   *snapshotRecorder
	extractor  *mocks.ExtractorMock
	transcoder *mocks.TranscoderMock
	dir        string
}

func newJobFixture(t *testing.T, subs SubtitleRunner) *jobFixture {
	t.Helper()
	rec := &snapshotRecorder{}
	store := memory.NewStore(rec)
	sched := NewScheduler(2, store)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	f := &jobFixture{
		store:      store,
		recorder:   rec,
		extractor:  mocks.NewExtractorMock(t),
		transcoder: mocks.NewTranscoderMock(t),
		dir:        t.TempDir(),
	}
	creds := staticCredentials{cred: domain.Credential{ID: "cookie_aaaaaaaaaaaa", Path: "/pool/cookie_aaaaaaaaaaaa.txt"}, ok: true}
	f.svc = NewJobService(store, sched, creds, f.extractor, f.transcoder, subs, JobServiceConfig{
		DownloadDir: f.dir,
		Retention:   time.Hour,
	})
	return f
}

func (f *jobFixture) waitDone(t *testing.T, id string) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := f.store.Get(id)
		if err != nil {
			return false
		}
		job = j
		return j.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

// writeDownload emulates the extractor writing its output file.
func writeDownload(t *testing.T, req port.DownloadRequest, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(req.OutputTemplate), name), []byte(content), 0644))
}

func TestJobService_SubmitDownload(t *testing.T) {
	f := newJobFixture(t, nil)

	f.extractor.On("Download", mock.Anything, mock.MatchedBy(func(req port.DownloadRequest) bool {
		return req.Format == domain.QualityBest.FormatExpression() && req.CookiePath == "/pool/cookie_aaaaaaaaaaaa.txt"
	})).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		req.Progress(port.DownloadProgress{Status: "downloading", Percent: 40, Speed: "1.2MiB/s", ETA: "00:10"})
		writeDownload(t, req, "My Video.mp4", "0123456789")
		writeDownload(t, req, "My Video.en.vtt", "WEBVTT")
		req.Progress(port.DownloadProgress{Status: "finished", Percent: 100})
		return port.DownloadResult{Title: "My Video"}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: " https://example.com/watch?v=1 ", Quality: domain.QualityBest, OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/watch?v=1", job.URL)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "My Video", done.Title)
	assert.Equal(t, "My Video.mp4", done.OriginalName)
	assert.Equal(t, filepath.Join(f.dir, job.ID, "My Video.mp4"), done.OriginalPath)
	assert.Empty(t, done.Speed)
	assert.False(t, done.CompletedAt.IsZero())

	assert.Equal(t, []domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusDownloading,
		domain.JobStatusMerging,
		domain.JobStatusDone,
	}, f.recorder.statuses())
}

func TestJobService_ProgressNeverDecreases(t *testing.T) {
	f := newJobFixture(t, nil)

	f.extractor.On("Download", mock.Anything, mock.Anything).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		for _, pct := range []float64{10, 80, 100} {
			req.Progress(port.DownloadProgress{Status: "downloading", Percent: pct})
		}
		req.Progress(port.DownloadProgress{Status: "finished"})
		// second stream restarts at zero
		req.Progress(port.DownloadProgress{Status: "downloading", Percent: 5})
		writeDownload(t, req, "v.mp4", "data")
		return port.DownloadResult{}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v"})
	require.NoError(t, err)
	f.waitDone(t, job.ID)

	last := -1
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	for _, s := range f.recorder.snapshots {
		assert.GreaterOrEqual(t, s.Progress, last)
		last = s.Progress
	}
}

func TestJobService_FormatFallback(t *testing.T) {
	f := newJobFixture(t, nil)

	f.extractor.On("Download", mock.Anything, mock.MatchedBy(func(req port.DownloadRequest) bool {
		return req.Format == domain.Quality1080p.FormatExpression()
	})).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		writeDownload(t, req, "stale.mp4.part", "partial")
		return port.DownloadResult{}, domain.ErrFormatUnavailable
	}).Once()
	f.extractor.On("Download", mock.Anything, mock.MatchedBy(func(req port.DownloadRequest) bool {
		return req.Format == domain.FallbackFormat
	})).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		_, err := os.Stat(filepath.Join(filepath.Dir(req.OutputTemplate), "stale.mp4.part"))
		assert.True(t, os.IsNotExist(err), "partial output cleared before retry")
		writeDownload(t, req, "clip.mp4", "data")
		return port.DownloadResult{Title: "clip"}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v", Quality: domain.Quality1080p})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, "clip.mp4", done.OriginalName)
}

func TestJobService_DownloadError(t *testing.T) {
	f := newJobFixture(t, nil)

	f.extractor.On("Download", mock.Anything, mock.Anything).
		Return(port.DownloadResult{}, &domain.ExecError{Tool: "yt-dlp", ExitCode: 1, Stderr: "ERROR: Video unavailable"}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v"})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusError, done.Status)
	assert.Contains(t, done.Error, "Video unavailable")
	assert.Empty(t, done.OriginalPath)
}

func TestJobService_NoOutput(t *testing.T) {
	f := newJobFixture(t, nil)
	f.extractor.On("Download", mock.Anything, mock.Anything).Return(port.DownloadResult{}, nil).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v"})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusError, done.Status)
	assert.Equal(t, domain.ErrNoOutput.Error(), done.Error)
}

func TestJobService_PanicBecomesJobError(t *testing.T) {
	f := newJobFixture(t, nil)
	f.extractor.On("Download", mock.Anything, mock.Anything).Return(func(port.DownloadRequest) (port.DownloadResult, error) {
		panic("extractor exploded")
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v"})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusError, done.Status)
	assert.Contains(t, done.Error, "extractor exploded")
}

func TestJobService_Audio(t *testing.T) {
	f := newJobFixture(t, fakeSubtitles{run: func(subtitle.Request) subtitle.Result {
		t.Error("audio jobs never burn subtitles")
		return subtitle.Result{}
	}})

	f.extractor.On("Download", mock.Anything, mock.MatchedBy(func(req port.DownloadRequest) bool {
		return req.Format == "bestaudio/best"
	})).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		writeDownload(t, req, "song.webm", "audio")
		return port.DownloadResult{Title: "song"}, nil
	}).Once()
	f.transcoder.On("ExtractAudio", mock.Anything, mock.Anything, mock.Anything).Return(func(in, out string) error {
		assert.Equal(t, ".webm", filepath.Ext(in))
		return os.WriteFile(out, []byte("mp3"), 0644)
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v", Quality: domain.QualityAudio, BurnSubtitle: true})
	require.NoError(t, err)
	assert.False(t, job.BurnSubtitle)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, "song.mp3", done.OriginalName)
	_, err = os.Stat(filepath.Join(f.dir, job.ID, "song.webm"))
	assert.True(t, os.IsNotExist(err))
}

func TestJobService_BurnSubtitles(t *testing.T) {
	subs := fakeSubtitles{run: func(req subtitle.Request) subtitle.Result {
		assert.Equal(t, "/pool/cookie_aaaaaaaaaaaa.txt", req.CookiePath)
		req.OnProgress(subtitle.StageTranslate, 50)
		req.OnProgress(subtitle.StageBurn, 50)
		burned := subtitle.BurnedPath(req.VideoPath)
		if err := os.WriteFile(burned, []byte("burned"), 0644); err != nil {
			t.Error(err)
		}
		return subtitle.Result{BurnedPath: burned}
	}}
	f := newJobFixture(t, subs)

	f.extractor.On("Download", mock.Anything, mock.Anything).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		req.Progress(port.DownloadProgress{Status: "downloading", Percent: 100})
		writeDownload(t, req, "clip.mp4", "video")
		return port.DownloadResult{Title: "clip"}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v", BurnSubtitle: true, OwnerID: "alice"})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, "clip.burned.mp4", done.BurnedName)
	assert.Empty(t, done.BurnError)
	assert.Equal(t, 100, done.Progress)

	assert.Equal(t, []domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusDownloading,
		domain.JobStatusMerging,
		domain.JobStatusTranslating,
		domain.JobStatusBurning,
		domain.JobStatusDone,
	}, f.recorder.statuses())

	f.recorder.mu.Lock()
	for _, s := range f.recorder.snapshots {
		switch s.Status {
		case domain.JobStatusDownloading:
			assert.LessOrEqual(t, s.Progress, 50)
		case domain.JobStatusTranslating:
			assert.Equal(t, 55, s.Progress)
		case domain.JobStatusBurning:
			assert.Equal(t, 79, s.Progress)
		}
	}
	f.recorder.mu.Unlock()

	path, name, err := f.svc.ArtifactPath(job.ID, "alice", ArtifactBest)
	require.NoError(t, err)
	assert.Equal(t, "clip.burned.mp4", name)
	assert.Equal(t, done.BurnedPath, path)

	_, name, err = f.svc.ArtifactPath(job.ID, "alice", ArtifactOriginal)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", name)

	_, _, err = f.svc.ArtifactPath(job.ID, "mallory", ArtifactBest)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobService_BurnFailureStillDone(t *testing.T) {
	subs := fakeSubtitles{run: func(subtitle.Request) subtitle.Result {
		return subtitle.Result{BurnErr: &subtitle.BurnError{Err: errors.New("exit status 1"), Stderr: "No such filter: 'subtitles'"}}
	}}
	f := newJobFixture(t, subs)

	f.extractor.On("Download", mock.Anything, mock.Anything).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		writeDownload(t, req, "clip.mp4", "video")
		return port.DownloadResult{}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v", BurnSubtitle: true})
	require.NoError(t, err)

	done := f.waitDone(t, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Contains(t, done.BurnError, "No such filter")
	assert.Empty(t, done.BurnedName)

	_, name, err := f.svc.ArtifactPath(job.ID, "", ArtifactBest)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", name)

	_, _, err = f.svc.ArtifactPath(job.ID, "", ArtifactBurned)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobService_InvalidURL(t *testing.T) {
	f := newJobFixture(t, nil)
	for _, raw := range []string{"", "   ", "ftp://example.com/x", "not a url", "https://"} {
		_, err := f.svc.Submit(context.Background(), SubmitRequest{URL: raw})
		assert.ErrorIs(t, err, domain.ErrInvalidURL, raw)
	}
	jobs, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobService_Ownership(t *testing.T) {
	f := newJobFixture(t, nil)
	now := time.Now().UTC()

	mk := func(owner string, status domain.JobStatus, age time.Duration) *domain.Job {
		j := domain.NewJob("https://example.com/v", domain.QualityBest, false, owner)
		j.Status = status
		j.CreatedAt = now.Add(-age)
		require.NoError(t, f.store.Create(j))
		return j
	}
	aliceOld := mk("alice", domain.JobStatusDone, 2*time.Minute)
	aliceNew := mk("alice", domain.JobStatusError, time.Minute)
	mk("alice", domain.JobStatusDownloading, 0)
	bob := mk("bob", domain.JobStatusDone, 0)

	_, err := f.svc.Get(bob.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.svc.Get(bob.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	history, err := f.svc.History("alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, aliceNew.ID, history[0].ID)
	assert.Equal(t, aliceOld.ID, history[1].ID)

	history, err = f.svc.History("alice", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestJobService_ArtifactNotReady(t *testing.T) {
	f := newJobFixture(t, nil)
	j := domain.NewJob("https://example.com/v", domain.QualityBest, false, "")
	j.Status = domain.JobStatusDownloading
	require.NoError(t, f.store.Create(j))

	_, _, err := f.svc.ArtifactPath(j.ID, "", ArtifactBest)
	assert.ErrorIs(t, err, domain.ErrNotReady)
	_, _, err = f.svc.ArtifactPath("missing", "", ArtifactBest)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobService_Cleanup(t *testing.T) {
	f := newJobFixture(t, nil)

	f.extractor.On("Download", mock.Anything, mock.Anything).Return(func(req port.DownloadRequest) (port.DownloadResult, error) {
		writeDownload(t, req, "clip.mp4", "video")
		return port.DownloadResult{}, nil
	}).Once()

	job, err := f.svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/v"})
	require.NoError(t, err)
	done := f.waitDone(t, job.ID)

	n, err := f.svc.Cleanup(done.CompletedAt.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "still within retention")

	n, err = f.svc.Cleanup(done.CompletedAt.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.store.Get(job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = os.Stat(filepath.Join(f.dir, job.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestJobService_Info(t *testing.T) {
	f := newJobFixture(t, nil)
	f.extractor.On("Info", mock.Anything, "https://example.com/v", "/pool/cookie_aaaaaaaaaaaa.txt").
		Return(domain.MediaInfo{Title: "Clip", Duration: 75}, nil).Once()

	info, err := f.svc.Info(context.Background(), "https://example.com/v")
	require.NoError(t, err)
	assert.Equal(t, "Clip", info.Title)
	assert.Equal(t, "1:15", info.DurationString())

	_, err = f.svc.Info(context.Background(), "javascript:alert(1)")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestFindOutput(t *testing.T) {
	dir := t.TempDir()
	for name, size := range map[string]int{
		"clip.mp4":            10,
		"clip.f137.mp4.part":  100,
		"clip.en.vtt":         50,
		"clip.zh-Hans.srt":    60,
		subtitle.BurnCopyName: 70,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644))
	}
	got, err := findOutput(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.mp4"), got)

	_, err = findOutput(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNoOutput)
}
