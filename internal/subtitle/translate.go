package subtitle

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
)

// SourceAuto lets the translation service detect the source language.
const SourceAuto = "auto"

type TranslateOptions struct {
	Source    string
	Target    string
	BatchSize int
	MaxChars  int
	// Progress receives the number of blocks handled so far.
	Progress func(done, total int)
}

type TranslateStats struct {
	Blocks          int
	Failed          int
	FallbackBatches int
}

// Translate returns a copy of blocks with translated text. It never fails:
// a block whose translation fails keeps its original text.
func Translate(ctx context.Context, tr port.Translator, blocks []Block, opts TranslateOptions) ([]Block, TranslateStats) {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxChars < 1 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Source == "" {
		opts.Source = SourceAuto
	}

	out := make([]Block, len(blocks))
	copy(out, blocks)
	stats := TranslateStats{Blocks: len(blocks)}

	done := 0
	for _, r := range Batches(len(blocks), opts.BatchSize) {
		batch := out[r[0]:r[1]]
		if ctx.Err() != nil {
			stats.Failed += len(blocks) - done
			break
		}

		if !translateBatch(ctx, tr, batch, opts) {
			stats.FallbackBatches++
			stats.Failed += translateEach(ctx, tr, batch, opts)
		}

		done += len(batch)
		if opts.Progress != nil {
			opts.Progress(done, len(blocks))
		}
	}
	return out, stats
}

func translateBatch(ctx context.Context, tr port.Translator, batch []Block, opts TranslateOptions) bool {
	texts := make([]string, len(batch))
	for i, b := range batch {
		texts[i] = b.Text
	}
	joined := JoinBatch(texts)
	if utf8.RuneCountInString(joined) > opts.MaxChars {
		return false
	}

	translated, err := tr.Translate(ctx, joined, opts.Source, opts.Target)
	if err != nil {
		logger.Warn.Printf("Batch translation failed, falling back to single blocks: %v", err)
		return false
	}
	parts, ok := SplitBatch(translated, len(batch))
	if !ok {
		logger.Debug.Printf("Batch translation returned a different segment count (want %d), falling back", len(batch))
		return false
	}
	for i := range batch {
		if parts[i] != "" {
			batch[i].Text = parts[i]
		}
	}
	return true
}

// translateEach translates blocks one by one and returns how many failed.
func translateEach(ctx context.Context, tr port.Translator, batch []Block, opts TranslateOptions) int {
	failed := 0
	for i := range batch {
		if ctx.Err() != nil {
			failed += len(batch) - i
			break
		}
		text := TruncateRunes(batch[i].Text, opts.MaxChars)
		translated, err := tr.Translate(ctx, text, opts.Source, opts.Target)
		if err != nil || strings.TrimSpace(translated) == "" {
			failed++
			continue
		}
		batch[i].Text = strings.TrimSpace(translated)
	}
	return failed
}
