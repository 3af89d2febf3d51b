package ytdlp

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/command"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls []command.Spec
	run   func(spec command.Spec) (command.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	f.calls = append(f.calls, spec)
	if f.run == nil {
		return command.Result{}, nil
	}
	return f.run(spec)
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line string
		want port.DownloadProgress
		ok   bool
	}{
		{
			line: "mfprogress|downloading| 42.5%|  1.20MiB/s|00:13",
			want: port.DownloadProgress{Status: "downloading", Percent: 42.5, Speed: "1.20MiB/s", ETA: "00:13"},
			ok:   true,
		},
		{
			line: "mfprogress|downloading|\x1b[0;94m  7.0%\x1b[0m|Unknown speed|Unknown ETA",
			want: port.DownloadProgress{Status: "downloading", Percent: 7},
			ok:   true,
		},
		{
			line: "mfprogress|finished|100%|NA|NA",
			want: port.DownloadProgress{Status: "finished", Percent: 100},
			ok:   true,
		},
		{
			line: "mfprogress|downloading|N/A|N/A|N/A",
			want: port.DownloadProgress{Status: "downloading"},
			ok:   true,
		},
		{line: "[download] Destination: x.mp4"},
		{line: "mftitle|My | Video"},
		{line: ""},
	}
	for _, tt := range tests {
		got, ok := parseProgress(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestExtractor_Download(t *testing.T) {
	runner := &fakeRunner{run: func(spec command.Spec) (command.Result, error) {
		spec.OnLine("[youtube] abc: Downloading webpage")
		spec.OnLine("mfprogress|downloading| 50.0%|2.00MiB/s|00:05")
		spec.OnLine("mfprogress|finished|100%|NA|NA")
		spec.OnLine("mftitle|Title | with bar")
		return command.Result{}, nil
	}}
	e := newExtractor("", runner)

	var progress []port.DownloadProgress
	res, err := e.Download(context.Background(), port.DownloadRequest{
		URL:            "https://example.com/v",
		Format:         "best",
		OutputTemplate: "/j/%(title)s.%(ext)s",
		CookiePath:     "/pool/cookie_aaaaaaaaaaaa.txt",
		Progress:       func(p port.DownloadProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Title | with bar", res.Title)
	require.Len(t, progress, 2)
	assert.Equal(t, 50.0, progress[0].Percent)
	assert.Equal(t, "finished", progress[1].Status)

	call := runner.calls[0]
	assert.Equal(t, "yt-dlp", call.Name)
	assert.Equal(t, "best", argAfter(call.Args, "-f"))
	assert.Equal(t, "/j/%(title)s.%(ext)s", argAfter(call.Args, "-o"))
	assert.Equal(t, "mp4", argAfter(call.Args, "--merge-output-format"))
	assert.Equal(t, "/pool/cookie_aaaaaaaaaaaa.txt", argAfter(call.Args, "--cookies"))
	assert.Contains(t, call.Args, "--no-playlist")
	assert.Equal(t, []string{"--", "https://example.com/v"}, call.Args[len(call.Args)-2:])
}

func TestExtractor_DownloadWithoutCookies(t *testing.T) {
	runner := &fakeRunner{}
	e := newExtractor("/usr/local/bin/yt-dlp", runner)

	_, err := e.Download(context.Background(), port.DownloadRequest{URL: "https://example.com/v", Format: "best", OutputTemplate: "x"})
	require.NoError(t, err)
	assert.NotContains(t, runner.calls[0].Args, "--cookies")
	assert.Equal(t, "/usr/local/bin/yt-dlp", runner.calls[0].Name)
}

func TestExtractor_DownloadFormatUnavailable(t *testing.T) {
	runner := &fakeRunner{run: func(command.Spec) (command.Result, error) {
		return command.Result{Stderr: "ERROR: [youtube] abc: Requested format is not available. Use --list-formats", ExitCode: 1}, errors.New("exit status 1")
	}}
	e := newExtractor("", runner)

	_, err := e.Download(context.Background(), port.DownloadRequest{URL: "https://example.com/v", Format: "bestvideo[height<=480]"})
	assert.ErrorIs(t, err, domain.ErrFormatUnavailable)
}

func TestExtractor_DownloadFailure(t *testing.T) {
	runner := &fakeRunner{run: func(command.Spec) (command.Result, error) {
		return command.Result{Stderr: "ERROR: Video unavailable", ExitCode: 1}, errors.New("exit status 1")
	}}
	e := newExtractor("", runner)

	_, err := e.Download(context.Background(), port.DownloadRequest{URL: "https://example.com/v", Format: "best"})
	var execErr *domain.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "yt-dlp", execErr.Tool)
	assert.Equal(t, "ERROR: Video unavailable", execErr.Stderr)
	assert.NotErrorIs(t, err, domain.ErrFormatUnavailable)
}

func TestExtractor_DownloadSubtitles(t *testing.T) {
	runner := &fakeRunner{}
	e := newExtractor("", runner)

	err := e.DownloadSubtitles(context.Background(), port.SubtitleRequest{
		URL:            "https://example.com/v",
		Languages:      []string{"zh-Hans", "en"},
		OutputTemplate: "/j/clip.%(ext)s",
	})
	require.NoError(t, err)

	call := runner.calls[0]
	assert.Equal(t, "zh-Hans,en", argAfter(call.Args, "--sub-langs"))
	assert.Equal(t, "srt/vtt/best", argAfter(call.Args, "--sub-format"))
	assert.Equal(t, "/j/clip.%(ext)s", argAfter(call.Args, "-o"))
	for _, flag := range []string{"--skip-download", "--write-subs", "--write-auto-subs"} {
		assert.Contains(t, call.Args, flag)
	}

	err = e.DownloadSubtitles(context.Background(), port.SubtitleRequest{URL: "https://example.com/v"})
	assert.Error(t, err)
	assert.Len(t, runner.calls, 1)
}

func TestExtractor_Info(t *testing.T) {
	runner := &fakeRunner{run: func(command.Spec) (command.Result, error) {
		return command.Result{Stdout: `{"id":"abc","title":"Clip","thumbnail":"https://i.example.com/t.jpg","duration":3725,"uploader":"Someone","formats":[]}`}, nil
	}}
	e := newExtractor("", runner)

	info, err := e.Info(context.Background(), "https://example.com/v", "/pool/c.txt")
	require.NoError(t, err)
	assert.Equal(t, domain.MediaInfo{Title: "Clip", Thumbnail: "https://i.example.com/t.jpg", Duration: 3725, Uploader: "Someone"}, info)
	assert.Equal(t, "1:02:05", info.DurationString())
	assert.Contains(t, runner.calls[0].Args, "--dump-single-json")
	assert.Equal(t, "/pool/c.txt", argAfter(runner.calls[0].Args, "--cookies"))

	runner.run = func(command.Spec) (command.Result, error) { return command.Result{Stdout: "garbage"}, nil }
	_, err = e.Info(context.Background(), "https://example.com/v", "")
	assert.ErrorContains(t, err, "parse yt-dlp info")
}

func TestExtractor_Version(t *testing.T) {
	runner := &fakeRunner{run: func(command.Spec) (command.Result, error) {
		return command.Result{Stdout: "2025.10.22\n"}, nil
	}}
	v, err := newExtractor("", runner).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025.10.22", v)
}
