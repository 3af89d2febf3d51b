// Package libretranslate talks to a LibreTranslate-compatible HTTP API.
package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/mediafetch/internal/port"
	"golang.org/x/text/language"
)

const (
	requestTimeout = 60 * time.Second
	maxErrorBody   = 512
)

type Translator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string) *Translator {
	return &Translator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: languageCode(source),
		Target: languageCode(target),
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}

	var out translateResponse
	decodeErr := json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = truncate(string(data), maxErrorBody)
		}
		return "", fmt.Errorf("translate: HTTP %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode translate response: %w", decodeErr)
	}
	if out.Error != "" {
		return "", fmt.Errorf("translate: %s", out.Error)
	}
	return out.TranslatedText, nil
}

// languageCode maps a BCP 47 tag to the codes LibreTranslate knows: the
// bare base language, with "zt" for traditional Chinese.
func languageCode(tag string) string {
	if tag == "" || tag == "auto" {
		return "auto"
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	base, _ := t.Base()
	if base.String() == "zh" {
		if script, _ := t.Script(); script.String() == "Hant" {
			return "zt"
		}
	}
	return base.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ port.Translator = (*Translator)(nil)
