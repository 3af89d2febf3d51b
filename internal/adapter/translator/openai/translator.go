// Package openai translates subtitles with an OpenAI-compatible chat model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/mediafetch/internal/port"
	"github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Translator struct {
	client chatClient
	model  string
}

// New builds a translator. baseURL may point at any OpenAI-compatible
// endpoint; empty keeps the default.
func New(apiKey, model, baseURL string) *Translator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newTranslator(openai.NewClientWithConfig(cfg), model)
}

func newTranslator(client chatClient, model string) *Translator {
	if model == "" {
		model = DefaultModel
	}
	return &Translator{client: client, model: model}
}

func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(source, target),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func systemPrompt(source, target string) string {
	from := "the source language"
	if source != "" && source != "auto" {
		from = source
	}
	return fmt.Sprintf("You translate video subtitles from %s into the language with BCP 47 tag %q. "+
		"The input may contain several subtitle lines separated by \" ||| \". "+
		"Keep every separator, in the same order and count. "+
		"Reply with the translation only, without notes or quotes.", from, target)
}

var _ port.Translator = (*Translator)(nil)
