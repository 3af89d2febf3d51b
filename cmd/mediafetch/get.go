package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/internal/client"
	"github.com/bnema/mediafetch/internal/domain"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var (
		quality  string
		burn     bool
		outDir   string
		artifact string
		detach   bool
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a video and save it locally",
		Long: "Submit a URL, follow its progress and save the result. " +
			"Interrupting only stops following; the job keeps running on the server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseArtifact(artifact)
			if err != nil {
				return err
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			sub, err := api.Submit(cmd.Context(), client.SubmitRequest{URL: args[0], Quality: quality, BurnSubtitle: burn})
			if err != nil {
				return err
			}
			if sub.QueuePosition > 0 {
				fmt.Fprintf(out, "Job %s queued at position %d\n", sub.JobID, sub.QueuePosition)
			} else {
				fmt.Fprintf(out, "Job %s started\n", sub.JobID)
			}
			if detach {
				return nil
			}

			job, err := followJob(cmd.Context(), api, sub.JobID, stderr)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintf(stderr, "\nStopped following. Job %s keeps running; check it with: mediafetch status %s\n", sub.JobID, sub.JobID)
				}
				return err
			}
			if job.Status == domain.JobStatusError {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
			}
			if job.BurnError != "" {
				fmt.Fprintln(stderr, renderStatusLine("Burn-in", statusWarn, job.BurnError, shouldColorize(stderr)))
			}

			path, err := saveArtifact(cmd.Context(), api, job.ID, kind, outDir, stderr)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", string(domain.QualityBest), "Quality: best, 1080p, 720p, 480p or audio")
	cmd.Flags().BoolVar(&burn, "burn", false, "Burn subtitles into the video")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to save into")
	cmd.Flags().StringVar(&artifact, "file", "best", "Which file to save: best, original or burned")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Submit and return without waiting")
	return cmd
}

func parseArtifact(s string) (client.Artifact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best":
		return client.ArtifactBest, nil
	case "original":
		return client.ArtifactOriginal, nil
	case "burned":
		return client.ArtifactBurned, nil
	default:
		return "", fmt.Errorf("unknown file kind %q (want best, original or burned)", s)
	}
}

// followJob renders progress until the job ends. Terminals get a bar,
// anything else one line per status change.
func followJob(ctx context.Context, api *client.Client, id string, w io.Writer) (*domain.Job, error) {
	if !shouldColorize(w) {
		var lastStatus domain.JobStatus
		return api.Follow(ctx, id, func(job *domain.Job) {
			if job.Status != lastStatus {
				lastStatus = job.Status
				fmt.Fprintln(w, jobSummary(job))
			}
		})
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("waiting"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	job, err := api.Follow(ctx, id, func(job *domain.Job) {
		bar.Describe(jobSummary(job))
		_ = bar.Set(job.Progress)
	})
	_ = bar.Finish()
	return job, err
}

// saveArtifact writes to a .part file and renames it once complete.
func saveArtifact(ctx context.Context, api *client.Client, id string, kind client.Artifact, dir string, w io.Writer) (string, error) {
	dl, err := api.Download(ctx, id, kind)
	if err != nil {
		return "", err
	}
	defer dl.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, dl.Name)
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}

	var sink io.Writer = f
	if shouldColorize(w) {
		bar := progressbar.NewOptions64(dl.Size,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("saving"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		sink = io.MultiWriter(f, bar)
	}

	if _, err := io.Copy(sink, dl.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("save %s: %w", dl.Name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}
