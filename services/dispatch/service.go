package dispatchsvc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core"
)

type httpService struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ core.DispatchService = (*httpService)(nil)

// NewService returns a DispatchService backed by an external delayed-dispatch
// HTTP service: it publishes targetURL with a delay header and the service
// GETs targetURL once the delay elapses.
func NewService(conf *core.Config) core.DispatchService {
	return &httpService{
		baseURL: strings.TrimRight(conf.Dispatch.URL, "/"),
		token:   conf.Dispatch.Token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (svc *httpService) Schedule(ctx context.Context, targetURL string, delay time.Duration) error {
	if svc.baseURL == "" || svc.token == "" {
		return core.NewConfigError("dispatch service not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.baseURL+"/"+targetURL, nil)
	if err != nil {
		return errors.Wrap(err, "building dispatch request")
	}
	req.Header.Set("Authorization", "Bearer "+svc.token)
	req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", int(delay.Seconds())))

	res, err := svc.client.Do(req)
	if err != nil {
		return core.NewForwardError(fmt.Sprintf("dispatch unreachable: %v", err), 0)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return core.NewForwardError(fmt.Sprintf("dispatch: status %d", res.StatusCode), res.StatusCode)
	}
	return nil
}

// ScheduledCall records one Schedule() through the mock.
type ScheduledCall struct {
	TargetURL string
	Delay     time.Duration
}

type serviceMock struct {
	mu        sync.Mutex
	scheduled []ScheduledCall

	Err error // returned by Schedule when set
}

var _ core.DispatchService = (*serviceMock)(nil)

// NewServiceMock returns a recording DispatchService for tests.
func NewServiceMock() *serviceMock {
	return &serviceMock{}
}

func (svc *serviceMock) Schedule(_ context.Context, targetURL string, delay time.Duration) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.Err != nil {
		return svc.Err
	}
	svc.scheduled = append(svc.scheduled, ScheduledCall{TargetURL: targetURL, Delay: delay})
	return nil
}

func (svc *serviceMock) Scheduled() []ScheduledCall {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]ScheduledCall, len(svc.scheduled))
	copy(out, svc.scheduled)
	return out
}

func (svc *serviceMock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.scheduled = nil
	svc.Err = nil
}
