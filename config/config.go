package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              int           `mapstructure:"port"`
	DataDir           string        `mapstructure:"data_dir"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	JobRetention      time.Duration `mapstructure:"job_retention"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	YtdlpPath         string        `mapstructure:"ytdlp_path"`
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	FFprobePath       string        `mapstructure:"ffprobe_path"`
	TargetLanguage    string        `mapstructure:"target_language"`
	FallbackLanguages []string      `mapstructure:"-"`
	Translator        string        `mapstructure:"translator"`
	TranslateURL      string        `mapstructure:"translate_url"`
	TranslateAPIKey   string        `mapstructure:"translate_api_key"`
	OpenAIAPIKey      string        `mapstructure:"openai_api_key"`
	OpenAIModel       string        `mapstructure:"openai_model"`
	SubtitleFont      string        `mapstructure:"subtitle_font"`
	SubtitleFontSize  int           `mapstructure:"subtitle_font_size"`
	ClientSecret      string        `mapstructure:"client_secret"`
	SubmitLimit       int           `mapstructure:"submit_limit"`
	LogLevel          string        `mapstructure:"log_level"`
	CookieCheckURL    string        `mapstructure:"cookie_check_url"`
}

const (
	TranslatorLibre  = "libretranslate"
	TranslatorOpenAI = "openai"
	TranslatorNone   = "none"
)

var defaults = map[string]any{
	"port":               7890,
	"data_dir":           "./data",
	"max_concurrent":     3,
	"job_retention":      "1h",
	"cleanup_interval":   "10m",
	"ytdlp_path":         "yt-dlp",
	"ffmpeg_path":        "ffmpeg",
	"ffprobe_path":       "ffprobe",
	"target_language":    "zh-Hans",
	"fallback_languages": "en",
	"translator":         TranslatorLibre,
	"translate_url":      "http://localhost:5000",
	"translate_api_key":  "",
	"openai_api_key":     "",
	"openai_model":       "gpt-4o-mini",
	"subtitle_font":      "Noto Sans CJK SC",
	"subtitle_font_size": 22,
	"client_secret":      "",
	"submit_limit":       10,
	"log_level":          "info",
	"cookie_check_url":   "https://www.youtube.com/watch?v=jNQXAC9IVRw",
}

// Load reads the configuration from the environment, e.g. MAX_CONCURRENT
// for max_concurrent.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.FallbackLanguages = splitList(v.GetString("fallback_languages"))
	cfg.TargetLanguage = strings.TrimSpace(cfg.TargetLanguage)

	if cfg.ClientSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.ClientSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("invalid MAX_CONCURRENT: %d, must be at least 1", c.MaxConcurrent)
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("invalid JOB_RETENTION: %s", c.JobRetention)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("invalid CLEANUP_INTERVAL: %s", c.CleanupInterval)
	}
	if c.TargetLanguage == "" {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	switch c.Translator {
	case TranslatorLibre:
		if c.TranslateURL == "" {
			return fmt.Errorf("TRANSLATE_URL is required for translator %q", c.Translator)
		}
	case TranslatorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for translator %q", c.Translator)
		}
	case TranslatorNone:
	default:
		return fmt.Errorf("invalid TRANSLATOR: %q", c.Translator)
	}
	if c.SubtitleFontSize <= 0 {
		return fmt.Errorf("invalid SUBTITLE_FONT_SIZE: %d", c.SubtitleFontSize)
	}
	if c.SubmitLimit < 1 {
		return fmt.Errorf("invalid SUBMIT_LIMIT: %d", c.SubmitLimit)
	}
	return nil
}

func (c *Config) DownloadDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

func (c *Config) CookieDir() string {
	return filepath.Join(c.DataDir, "cookies")
}

// SubtitleLanguages is the prioritized list requested from the extractor.
func (c *Config) SubtitleLanguages() []string {
	langs := []string{c.TargetLanguage}
	for _, l := range c.FallbackLanguages {
		if l != c.TargetLanguage {
			langs = append(langs, l)
		}
	}
	return langs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
