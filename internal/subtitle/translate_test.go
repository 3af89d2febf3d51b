package subtitle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bnema/mediafetch/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func numberedBlocks(n int) []Block {
	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Block{Index: i + 1, Start: ms(i * 1000), End: ms(i*1000 + 900), Text: fmt.Sprintf("line %d", i+1)}
	}
	return blocks
}

// upper "translates" by upper-casing, keeping separators intact.
func upper(text string) (string, error) {
	return strings.ToUpper(text), nil
}

func TestTranslate_Batches(t *testing.T) {
	tr := mocks.NewTranslatorMock(t)
	tr.On("Translate", mock.Anything, mock.Anything, "auto", "zh-Hans").Return(upper).Times(3)

	var progress []int
	out, stats := Translate(context.Background(), tr, numberedBlocks(32), TranslateOptions{
		Target:   "zh-Hans",
		Progress: func(done, _ int) { progress = append(progress, done) },
	})

	require.Len(t, out, 32)
	assert.Equal(t, "LINE 1", out[0].Text)
	assert.Equal(t, "LINE 32", out[31].Text)
	assert.Equal(t, ms(31000), out[31].Start, "timing preserved")
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 0, stats.FallbackBatches)
	assert.Equal(t, []int{15, 30, 32}, progress)
}

func TestTranslate_BatchKeepsLineBreaks(t *testing.T) {
	tr := mocks.NewTranslatorMock(t)
	tr.On("Translate", mock.Anything, "first line <br> second line ||| x", "auto", "fr").Return(upper).Once()

	blocks := []Block{
		{Index: 1, Start: ms(0), End: ms(900), Text: "first line\nsecond line"},
		{Index: 2, Start: ms(1000), End: ms(1900), Text: "x"},
	}
	out, stats := Translate(context.Background(), tr, blocks, TranslateOptions{Target: "fr"})

	assert.Equal(t, "FIRST LINE\nSECOND LINE", out[0].Text)
	assert.Equal(t, "X", out[1].Text)
	assert.Equal(t, 0, stats.FallbackBatches)
}

func TestTranslate_CountMismatchFallsBackPerBlock(t *testing.T) {
	tr := mocks.NewTranslatorMock(t)
	// The batched call loses a separator.
	tr.On("Translate", mock.Anything, "line 1 ||| line 2 ||| line 3", "auto", "fr").Return("ligne 1 ligne 2 ||| ligne 3", nil).Once()
	tr.On("Translate", mock.Anything, "line 1", "auto", "fr").Return("ligne 1", nil).Once()
	tr.On("Translate", mock.Anything, "line 2", "auto", "fr").Return("", errors.New("quota")).Once()
	tr.On("Translate", mock.Anything, "line 3", "auto", "fr").Return("ligne 3", nil).Once()

	out, stats := Translate(context.Background(), tr, numberedBlocks(3), TranslateOptions{Target: "fr"})

	assert.Equal(t, []string{"ligne 1", "line 2", "ligne 3"}, []string{out[0].Text, out[1].Text, out[2].Text})
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.FallbackBatches)
}

func TestTranslate_BatchErrorFallsBack(t *testing.T) {
	tr := mocks.NewTranslatorMock(t)
	tr.On("Translate", mock.Anything, "line 1 ||| line 2", "auto", "de").Return("", errors.New("503")).Once()
	tr.On("Translate", mock.Anything, mock.Anything, "auto", "de").Return(upper).Twice()

	out, stats := Translate(context.Background(), tr, numberedBlocks(2), TranslateOptions{Target: "de"})

	assert.Equal(t, "LINE 1", out[0].Text)
	assert.Equal(t, "LINE 2", out[1].Text)
	assert.Equal(t, 0, stats.Failed)
}

func TestTranslate_OversizedBatchSkipsBatchCall(t *testing.T) {
	long := strings.Repeat("字", 40)
	blocks := []Block{{Text: long}, {Text: "short"}}

	tr := mocks.NewTranslatorMock(t)
	tr.On("Translate", mock.Anything, strings.Repeat("字", 30), "auto", "en").Return("truncated", nil).Once()
	tr.On("Translate", mock.Anything, "short", "auto", "en").Return("kurz", nil).Once()

	out, stats := Translate(context.Background(), tr, blocks, TranslateOptions{Target: "en", MaxChars: 30})

	assert.Equal(t, "truncated", out[0].Text)
	assert.Equal(t, "kurz", out[1].Text)
	assert.Equal(t, 1, stats.FallbackBatches)
}

func TestTranslate_CancelledKeepsOriginals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := mocks.NewTranslatorMock(t)
	out, stats := Translate(ctx, tr, numberedBlocks(20), TranslateOptions{Target: "ja"})

	assert.Equal(t, "line 1", out[0].Text)
	assert.Equal(t, 20, stats.Failed)
}
