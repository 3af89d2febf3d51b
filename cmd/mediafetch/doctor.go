package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/config"
	"github.com/bnema/mediafetch/internal/adapter/converter/ffmpeg"
	"github.com/bnema/mediafetch/internal/adapter/extractor/ytdlp"
	"github.com/bnema/mediafetch/internal/infrastructure/command"
)

const doctorTimeout = 10 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check local tools and the server connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			runCtx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			failures := 0
			report := func(label string, kind statusKind, msg string) {
				if kind == statusError {
					failures++
				}
				fmt.Fprintln(out, renderStatusLine(label, kind, msg, colorize))
			}

			cfg, err := config.Load()
			if err != nil {
				report("Config", statusError, err.Error())
				cfg = &config.Config{YtdlpPath: "yt-dlp", FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
			} else {
				report("Config", statusOK, fmt.Sprintf("translator %s, target %s", cfg.Translator, cfg.TargetLanguage))
			}

			checkTools(runCtx, cfg, report)
			checkServer(runCtx, ctx, report)

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			return nil
		},
	}
}

func checkTools(ctx context.Context, cfg *config.Config, report func(string, statusKind, string)) {
	if path, err := command.Lookup(cfg.YtdlpPath); err != nil {
		report("yt-dlp", statusError, err.Error())
	} else if v, err := ytdlp.NewExtractor(path).Version(ctx); err != nil {
		report("yt-dlp", statusWarn, fmt.Sprintf("%s: %v", path, err))
	} else {
		report("yt-dlp", statusOK, v)
	}

	if path, err := command.Lookup(cfg.FFmpegPath); err != nil {
		report("ffmpeg", statusError, err.Error())
	} else if v, err := ffmpeg.NewConverter(path, cfg.FFprobePath).Version(ctx); err != nil {
		report("ffmpeg", statusWarn, fmt.Sprintf("%s: %v", path, err))
	} else {
		report("ffmpeg", statusOK, v)
	}

	if path, err := command.Lookup(cfg.FFprobePath); err != nil {
		report("ffprobe", statusError, err.Error())
	} else {
		report("ffprobe", statusOK, path)
	}
}

func checkServer(ctx context.Context, cc *commandContext, report func(string, statusKind, string)) {
	api, err := cc.apiClient()
	if err != nil {
		report("Server", statusError, err.Error())
		return
	}
	v, err := api.Health(ctx)
	if err != nil {
		// A missing server is fine when only the tools are being checked.
		report("Server", statusWarn, fmt.Sprintf("%s unreachable: %v", cc.serverURL(), err))
		return
	}
	report("Server", statusOK, fmt.Sprintf("%s (%s)", cc.serverURL(), v))
}
