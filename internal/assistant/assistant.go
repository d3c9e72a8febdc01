// Package assistant forwards free-form chat text to an OpenAI chat model.
package assistant

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	NotConfigured = "OpenAI API key not configured."
	Unavailable   = "Не вдалося отримати відповідь від ChatGPT."
)

type Assistant struct {
	client *openai.Client
	model  string
	log    *logrus.Entry
}

// New returns an Assistant; with an empty key every reply is NotConfigured.
func New(apiKey, model, baseURL string, log *logrus.Entry) *Assistant {
	a := &Assistant{model: model, log: log}
	if a.model == "" {
		a.model = openai.GPT3Dot5Turbo
	}
	if apiKey == "" {
		return a
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	a.client = openai.NewClientWithConfig(cfg)
	return a
}

func (a *Assistant) Enabled() bool {
	return a != nil && a.client != nil
}

// Reply sends text as a single user message and returns the model's answer.
func (a *Assistant) Reply(ctx context.Context, text string) string {
	if !a.Enabled() {
		return NotConfigured
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		a.log.WithError(err).Error("chat completion failed")
		return Unavailable
	}
	if len(resp.Choices) == 0 {
		a.log.Error("chat completion returned no choices")
		return Unavailable
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return Unavailable
	}
	return reply
}
