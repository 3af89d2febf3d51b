package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/internal/domain"
)

const historyTitleWidth = 40

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var job *domain.Job
			if follow {
				job, err = followJob(cmd.Context(), api, args[0], cmd.ErrOrStderr())
			} else {
				job, err = api.Job(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Job", jobKind(job), job.ID, colorize))
			for _, line := range jobDetails(job) {
				fmt.Fprintln(out, renderStatusLine(line[0], statusInfo, line[1], false))
			}
			if job.BurnError != "" {
				fmt.Fprintln(out, renderStatusLine("Burn error", statusWarn, job.BurnError, colorize))
			}
			if job.Error != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, job.Error, colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow progress until the job ends")
	return cmd
}

func jobDetails(job *domain.Job) [][2]string {
	details := [][2]string{
		{"Status", jobSummary(job)},
		{"Title", orDash(job.Title)},
		{"URL", job.URL},
		{"Quality", string(job.Quality)},
		{"Subtitles", strconv.FormatBool(job.BurnSubtitle)},
		{"Created", ago(job.CreatedAt)},
	}
	if !job.CompletedAt.IsZero() {
		details = append(details, [2]string{"Completed", ago(job.CompletedAt)})
	}
	if job.OriginalName != "" {
		details = append(details, [2]string{"File", job.OriginalName})
	}
	if job.BurnedName != "" {
		details = append(details, [2]string{"Burned file", job.BurnedName})
	}
	return details
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := api.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs yet")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					string(job.Status),
					fmt.Sprintf("%d%%", job.Progress),
					text.Trim(orDash(job.Title), historyTitleWidth),
					string(job.Quality),
					ago(job.CreatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Progress", "Title", "Quality", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
