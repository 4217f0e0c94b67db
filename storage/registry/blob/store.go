package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core/registry"
)

// store keeps the registry as a single object on a token-authenticated HTTP
// blob service. A transiently unreachable remote degrades reads to the local
// fallback store (read-only: local state is not synced back to the remote).
type store struct {
	baseURL  string
	token    string
	key      string
	client   *http.Client
	fallback registry.Store
}

var _ registry.Store = (*store)(nil) // interface compliance check

func NewStore(baseURL, token, key string, fallback registry.Store) registry.Store {
	return &store{
		baseURL:  baseURL,
		token:    token,
		key:      key,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: fallback,
	}
}

func (s *store) ReadRegistry(ctx context.Context) (registry.Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(), nil)
	if err != nil {
		return registry.Registry{}, errors.Wrap(err, "building blob request")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	res, err := s.client.Do(req)
	if err != nil {
		return s.readFallback(ctx, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		// first read: initialize and persist the empty default
		reg := registry.Default()
		if err = s.WriteRegistry(ctx, reg); err != nil {
			return registry.Registry{}, err
		}
		return reg, nil
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return s.readFallback(ctx, errors.Errorf("blob read: status %d", res.StatusCode))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return s.readFallback(ctx, errors.Wrap(err, "reading blob body"))
	}
	return registry.Decode(data), nil
}

func (s *store) WriteRegistry(ctx context.Context, reg registry.Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return errors.Wrap(err, "marshaling registry")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(), bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "building blob request")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "writing blob")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("blob write: status %d", res.StatusCode)
	}
	return nil
}

func (s *store) readFallback(ctx context.Context, cause error) (registry.Registry, error) {
	if s.fallback == nil {
		return registry.Registry{}, cause
	}
	reg, err := s.fallback.ReadRegistry(ctx)
	if err != nil {
		return registry.Registry{}, errors.Wrapf(cause, "fallback read also failed: %v", err)
	}
	return reg, nil
}

func (s *store) objectURL() string {
	return s.baseURL + "/" + s.key
}
