package webhooksvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core"
)

type httpService struct {
	client *http.Client
}

var _ core.WebhookService = (*httpService)(nil)

func NewService() core.WebhookService {
	return &httpService{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Post serializes msg and posts it to webhookURL. A missing URL returns a
// 500-equivalent result without any network I/O; a reachable webhook returns
// its raw status so callers can distinguish success, validation-style failure
// and transport failure.
func (svc *httpService) Post(ctx context.Context, webhookURL string, msg core.WebhookMessage) (*core.WebhookResult, error) {
	if webhookURL == "" {
		return &core.WebhookResult{
			StatusCode: http.StatusInternalServerError,
			Body:       "webhook URL not configured",
		}, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling webhook message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "posting webhook message")
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return &core.WebhookResult{StatusCode: res.StatusCode, Body: string(body)}, nil
}
