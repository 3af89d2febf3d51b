package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/config"
	"github.com/bnema/mediafetch/internal/adapter/converter/ffmpeg"
	"github.com/bnema/mediafetch/internal/adapter/extractor/ytdlp"
	HTTPAdapter "github.com/bnema/mediafetch/internal/adapter/http"
	"github.com/bnema/mediafetch/internal/adapter/storage/cookiedir"
	"github.com/bnema/mediafetch/internal/adapter/storage/memory"
	sqlitestore "github.com/bnema/mediafetch/internal/adapter/storage/sqlite"
	"github.com/bnema/mediafetch/internal/adapter/translator/breaker"
	"github.com/bnema/mediafetch/internal/adapter/translator/libretranslate"
	"github.com/bnema/mediafetch/internal/adapter/translator/openai"
	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/command"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/bnema/mediafetch/internal/service"
	"github.com/bnema/mediafetch/internal/subtitle"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mediafetch server",
		Long:  "Run the HTTP server. Settings come from the environment, e.g. PORT, DATA_DIR and MAX_CONCURRENT.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.SetLevel(cfg.LogLevel)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Info.Printf("starting mediafetch %s on port %d, data=%s", version, cfg.Port, cfg.DataDir)

	if err := os.MkdirAll(cfg.DownloadDir(), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	lockPath := filepath.Join(cfg.DataDir, "mediafetch.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mediafetch server is already using %s", cfg.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	for _, bin := range []string{cfg.YtdlpPath, cfg.FFmpegPath, cfg.FFprobePath} {
		if _, err := command.Lookup(bin); err != nil {
			logger.Warn.Printf("%v, jobs needing it will fail", err)
		}
	}

	cookieFiles, err := cookiedir.NewStore(cfg.CookieDir())
	if err != nil {
		return fmt.Errorf("open cookie directory: %w", err)
	}
	stats, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open credential database: %w", err)
	}
	defer func() { _ = stats.Close() }()

	eventBus := service.NewEventBus()
	jobStore := memory.NewStore(eventBus)
	scheduler := service.NewScheduler(cfg.MaxConcurrent, jobStore)

	extractor := ytdlp.NewExtractor(cfg.YtdlpPath)
	converter := ffmpeg.NewConverter(cfg.FFmpegPath, cfg.FFprobePath)
	if v, err := extractor.Version(ctx); err == nil {
		logger.Info.Printf("using yt-dlp %s", v)
	}

	credentials := service.NewCredentialService(cookieFiles, stats, extractor, cfg.CookieCheckURL)

	style := domain.DefaultSubtitleStyle()
	style.FontName = cfg.SubtitleFont
	style.FontSize = cfg.SubtitleFontSize
	pipeline := subtitle.NewPipeline(extractor, converter, newTranslator(cfg), subtitle.Config{
		TargetLanguage:    cfg.TargetLanguage,
		FallbackLanguages: cfg.FallbackLanguages,
		Style:             style,
	})

	jobs := service.NewJobService(jobStore, scheduler, credentials, extractor, converter, pipeline, service.JobServiceConfig{
		DownloadDir: cfg.DownloadDir(),
		Retention:   cfg.JobRetention,
	})
	identity := service.NewIdentityService(cfg.ClientSecret)

	server := HTTPAdapter.NewServer(jobs, credentials, identity, eventBus, HTTPAdapter.Options{
		Version:        version,
		TargetLanguage: cfg.TargetLanguage,
		SubmitLimit:    cfg.SubmitLimit,
		Secret:         cfg.ClientSecret,
	})
	defer server.Close()

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go runCleanup(cleanupCtx, jobs, cfg.CleanupInterval)

	// Progress streams watch this context so Shutdown does not wait on them.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 0, // progress streams stay open until the job ends
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelBase)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info.Printf("received shutdown signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}
	stopCleanup()

	// Running jobs get the rest of the timeout before they are cancelled.
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn.Printf("jobs still running at shutdown: %v", err)
	}
	if err := credentials.Wait(shutdownCtx); err != nil {
		logger.Warn.Printf("credential checks cancelled at shutdown: %v", err)
	}

	logger.Info.Printf("shutdown complete")
	return nil
}

type expiredJobCleaner interface {
	Cleanup(now time.Time) (int, error)
}

// runCleanup removes expired jobs and their files on every tick until ctx
// ends. The job service logs what it removed.
func runCleanup(ctx context.Context, jobs expiredJobCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if _, err := jobs.Cleanup(now); err != nil {
				logger.Error.Printf("cleanup failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// newTranslator returns nil when translation is disabled.
func newTranslator(cfg *config.Config) port.Translator {
	var t port.Translator
	switch cfg.Translator {
	case config.TranslatorLibre:
		t = libretranslate.New(cfg.TranslateURL, cfg.TranslateAPIKey)
	case config.TranslatorOpenAI:
		t = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
	default:
		return nil
	}
	settings := breaker.DefaultSettings()
	settings.Name = cfg.Translator
	return breaker.New(t, settings)
}
