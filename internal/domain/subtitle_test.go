package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSubtitleFile(t *testing.T) {
	tests := []struct {
		path   string
		ok     bool
		lang   string
		format SubtitleFormat
	}{
		{"/j/My Video.en.vtt", true, "en", SubtitleVTT},
		{"/j/My Video.zh-Hans.srt", true, "zh-Hans", SubtitleSRT},
		{"/j/clip.ja.SRV3", true, "ja", SubtitleSRV3},
		{"/j/clip.srt", true, "", SubtitleSRT},
		{"/j/clip.mp4", false, "", ""},
		{"/j/clip.en.vtt.part", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, ok := ParseSubtitleFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.lang, f.Language)
				assert.Equal(t, tt.format, f.Format)
				assert.Equal(t, tt.path, f.Path)
			}
		})
	}
}

func TestCredentialID(t *testing.T) {
	id := NewCredentialID()
	assert.True(t, ValidCredentialID(id), id)

	for _, bad := range []string{"", "cookie_", "cookie_ABCDEFGHIJKL", "cookie_../../etc", "x_0123456789ab", "cookie_0123456789abc"} {
		assert.False(t, ValidCredentialID(bad), bad)
	}
}

func TestSubtitleStyle_ForceStyle(t *testing.T) {
	style := DefaultSubtitleStyle()
	style.FontSize = 30
	got := style.ForceStyle()
	assert.Contains(t, got, "FontSize=30")
	assert.Contains(t, got, "FontName=Noto Sans CJK SC")
}
