package core

import (
	"context"
	"time"
)

type (
	// EmbedField is a single name/value pair inside an embed.
	EmbedField struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline,omitempty"`
	}

	EmbedFooter struct {
		Text string `json:"text"`
	}

	// Embed is a rich block of a webhook message. The exact styling is a
	// pass-through concern: it is serialized as-is to the chat service.
	Embed struct {
		Title       string       `json:"title,omitempty"`
		Description string       `json:"description,omitempty"`
		Color       int          `json:"color,omitempty"`
		Fields      []EmbedField `json:"fields,omitempty"`
		Footer      *EmbedFooter `json:"footer,omitempty"`
		Timestamp   string       `json:"timestamp,omitempty"`
	}

	// WebhookMessage is the payload posted to a chat webhook.
	WebhookMessage struct {
		Content string  `json:"content,omitempty"`
		Embeds  []Embed `json:"embeds,omitempty"`
	}

	// WebhookResult carries the raw outcome of a webhook post so callers can
	// distinguish success, validation-style failure and transport failure.
	WebhookResult struct {
		StatusCode int
		Body       string
	}

	// WebhookService delivers formatted messages to a chat webhook URL.
	// No retry at this layer; retry policy (if any) is the caller's concern.
	WebhookService interface {
		Post(ctx context.Context, webhookURL string, msg WebhookMessage) (*WebhookResult, error)
	}

	// DispatchService schedules a deferred HTTP GET of targetURL after delay
	// through an external delayed-dispatch service.
	DispatchService interface {
		Schedule(ctx context.Context, targetURL string, delay time.Duration) error
	}
)

func (res *WebhookResult) OK() bool {
	return res != nil && res.StatusCode >= 200 && res.StatusCode < 300
}
