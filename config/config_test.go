package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7890, cfg.Port)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, 10*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, "zh-Hans", cfg.TargetLanguage)
	assert.Equal(t, []string{"en"}, cfg.FallbackLanguages)
	assert.Len(t, cfg.ClientSecret, 64, "secret should be generated")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT", "5")
	t.Setenv("JOB_RETENTION", "30m")
	t.Setenv("FALLBACK_LANGUAGES", "en, ja ,,zh-Hans")
	t.Setenv("CLIENT_SECRET", "fixed")
	t.Setenv("DATA_DIR", "/srv/mf")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 30*time.Minute, cfg.JobRetention)
	assert.Equal(t, []string{"en", "ja", "zh-Hans"}, cfg.FallbackLanguages)
	assert.Equal(t, []string{"zh-Hans", "en", "ja"}, cfg.SubtitleLanguages())
	assert.Equal(t, "fixed", cfg.ClientSecret)
	assert.Equal(t, "/srv/mf/downloads", cfg.DownloadDir())
	assert.Equal(t, "/srv/mf/cookies", cfg.CookieDir())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero concurrency", key: "MAX_CONCURRENT", val: "0"},
		{name: "bad port", key: "PORT", val: "70000"},
		{name: "unknown translator", key: "TRANSLATOR", val: "babelfish"},
		{name: "empty target", key: "TARGET_LANGUAGE", val: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("TRANSLATOR", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TranslatorOpenAI, cfg.Translator)
}
