package registry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	claimAttempts = 3
	backoffUnit   = 50 * time.Millisecond
)

var sleepFunc = time.Sleep // mockable

type (
	// Store persists full registry snapshots. There is no in-memory cache:
	// every call re-reads, so callers must tolerate read-after-write races.
	Store interface {
		// ReadRegistry returns the current state; if no persisted state exists
		// it initializes and persists the empty default before returning it.
		ReadRegistry(ctx context.Context) (Registry, error)
		// WriteRegistry overwrites the persisted snapshot.
		WriteRegistry(ctx context.Context, reg Registry) error
	}

	Service struct {
		store Store
	}
)

func NewService(store Store) *Service {
	return &Service{store: store}
}

// HasKey reports whether the normalized form of rawKey is already claimed in
// cat. An empty key is never claimed and costs no I/O.
func (svc *Service) HasKey(ctx context.Context, cat Category, rawKey string) (bool, error) {
	key := NormalizeKey(rawKey)
	if key == "" {
		return false, nil
	}
	reg, err := svc.store.ReadRegistry(ctx)
	if err != nil {
		return false, errors.Wrap(err, "reading registry")
	}
	return reg.Has(cat, key), nil
}

// ClaimKey records the normalized form of rawKey in cat. It is idempotent: a
// key already present is a no-op. Writes race under the read-modify-write
// pattern; an increasing backoff retries failed writes but this is optimistic
// retry, not mutual exclusion - two concurrent claimers can both read before
// either writes, and a lost update is possible on backends without
// conditional writes.
func (svc *Service) ClaimKey(ctx context.Context, cat Category, rawKey string) error {
	key := NormalizeKey(rawKey)
	if key == "" {
		return nil
	}

	var err error
	for attempt := 1; attempt <= claimAttempts; attempt++ {
		if attempt > 1 {
			sleepFunc(time.Duration(attempt-1) * backoffUnit)
		}

		var reg Registry
		if reg, err = svc.store.ReadRegistry(ctx); err != nil {
			err = errors.Wrap(err, "reading registry")
			continue
		}
		if !reg.Add(cat, key) {
			return nil // already claimed
		}
		if err = svc.store.WriteRegistry(ctx, reg); err != nil {
			err = errors.Wrap(err, "writing registry")
			continue
		}
		return nil
	}
	return err
}
