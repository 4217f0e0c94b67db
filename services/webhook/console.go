package webhooksvc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/trezcool/karibu/core"
)

type consoleService struct {
	disableOutput bool
}

var _ core.WebhookService = (*consoleService)(nil)

// NewConsoleService returns a WebhookService that prints messages instead of
// delivering them; for DEV.
func NewConsoleService() core.WebhookService {
	return &consoleService{}
}

func (svc *consoleService) Post(_ context.Context, webhookURL string, msg core.WebhookMessage) (*core.WebhookResult, error) {
	if webhookURL == "" {
		return &core.WebhookResult{
			StatusCode: http.StatusInternalServerError,
			Body:       "webhook URL not configured",
		}, nil
	}
	if !svc.disableOutput {
		data, _ := json.MarshalIndent(msg, "", "  ")
		log.Printf("webhook -> %s\n%s", webhookURL, data)
	}
	return &core.WebhookResult{StatusCode: http.StatusNoContent}, nil
}

// PostedMessage records one delivery through the mock.
type PostedMessage struct {
	WebhookURL string
	Message    core.WebhookMessage
}

type serviceMock struct {
	consoleService

	mu     sync.Mutex
	posted []PostedMessage

	// FailNext makes the next post return a transport-failure status.
	FailNext bool
}

// NewServiceMock returns a recording WebhookService for tests.
func NewServiceMock() *serviceMock {
	return &serviceMock{consoleService: consoleService{disableOutput: true}}
}

func (svc *serviceMock) Post(ctx context.Context, webhookURL string, msg core.WebhookMessage) (*core.WebhookResult, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.FailNext {
		svc.FailNext = false
		return &core.WebhookResult{StatusCode: http.StatusBadGateway, Body: "mock failure"}, nil
	}
	res, err := svc.consoleService.Post(ctx, webhookURL, msg)
	if err == nil && res.OK() {
		svc.posted = append(svc.posted, PostedMessage{WebhookURL: webhookURL, Message: msg})
	}
	return res, err
}

func (svc *serviceMock) Posted() []PostedMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]PostedMessage, len(svc.posted))
	copy(out, svc.posted)
	return out
}

func (svc *serviceMock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.posted = nil
	svc.FailNext = false
}
