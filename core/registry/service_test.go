package registry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	reg         Registry
	initialized bool

	readErr    error
	failWrites int
	reads      int
	writes     int
}

func (s *fakeStore) ReadRegistry(_ context.Context) (Registry, error) {
	s.reads++
	if s.readErr != nil {
		return Registry{}, s.readErr
	}
	if !s.initialized {
		s.reg = Default()
		s.initialized = true
	}
	return s.reg, nil
}

func (s *fakeStore) WriteRegistry(_ context.Context, reg Registry) error {
	s.writes++
	if s.failWrites > 0 {
		s.failWrites--
		return errors.New("write contention")
	}
	s.reg = reg
	s.initialized = true
	return nil
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	restore := sleepFunc
	sleeps := new([]time.Duration)
	sleepFunc = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	t.Cleanup(func() { sleepFunc = restore })
	return sleeps
}

func TestService_ClaimKey_thenHasKey(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	svc := NewService(&fakeStore{})

	if err := svc.ClaimKey(ctx, CategoryRSVP, " Foo@Bar.com "); err != nil {
		t.Fatalf("ClaimKey() failed: %v", err)
	}

	tests := []struct {
		name string
		cat  Category
		key  string
		want bool
	}{
		{name: "normalized form", cat: CategoryRSVP, key: "foo@bar.com", want: true},
		{name: "raw form", cat: CategoryRSVP, key: " Foo@Bar.com ", want: true},
		{name: "mixed case", cat: CategoryRSVP, key: "FOO@BAR.COM", want: true},
		{name: "other category", cat: CategoryMember, key: "foo@bar.com", want: false},
		{name: "other key", cat: CategoryRSVP, key: "other@bar.com", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.HasKey(ctx, tt.cat, tt.key)
			if err != nil {
				t.Fatalf("HasKey() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasKey(%q, %q) = %t; want %t", tt.cat, tt.key, got, tt.want)
			}
		})
	}
}

func TestService_ClaimKey_isIdempotent(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	store := &fakeStore{}
	svc := NewService(store)

	if err := svc.ClaimKey(ctx, CategoryRSVP, "foo@bar.com"); err != nil {
		t.Fatalf("ClaimKey() failed: %v", err)
	}
	if err := svc.ClaimKey(ctx, CategoryRSVP, "  FOO@bar.com"); err != nil {
		t.Fatalf("ClaimKey() failed: %v", err)
	}

	if got := len(store.reg.RSVP); got != 1 {
		t.Errorf("registry has %d rsvp keys; want 1 (%v)", got, store.reg.RSVP)
	}
	if store.writes != 1 {
		t.Errorf("store.writes = %d; want 1 (second claim must be a no-op)", store.writes)
	}
}

func TestService_emptyKeyNeedsNoIO(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	store := &fakeStore{}
	svc := NewService(store)

	got, err := svc.HasKey(ctx, CategoryRSVP, "   ")
	if err != nil {
		t.Fatalf("HasKey() failed: %v", err)
	}
	if got {
		t.Error("HasKey() = true for empty key; want false")
	}
	if err = svc.ClaimKey(ctx, CategoryRSVP, ""); err != nil {
		t.Fatalf("ClaimKey() failed: %v", err)
	}
	if store.reads != 0 || store.writes != 0 {
		t.Errorf("store touched for empty key: reads=%d writes=%d", store.reads, store.writes)
	}
}

func TestService_ClaimKey_retriesWithBackoff(t *testing.T) {
	sleeps := stubSleep(t)
	ctx := context.Background()
	store := &fakeStore{failWrites: 2}
	svc := NewService(store)

	if err := svc.ClaimKey(ctx, CategoryOfficer, "foo@bar.com"); err != nil {
		t.Fatalf("ClaimKey() failed: %v", err)
	}

	if store.writes != 3 {
		t.Errorf("store.writes = %d; want 3", store.writes)
	}
	wantSleeps := []time.Duration{backoffUnit, 2 * backoffUnit}
	if len(*sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps = %v; want %v", *sleeps, wantSleeps)
	}
	for i, want := range wantSleeps {
		if (*sleeps)[i] != want {
			t.Errorf("sleeps[%d] = %v; want %v", i, (*sleeps)[i], want)
		}
	}
	if ok, _ := svc.HasKey(ctx, CategoryOfficer, "foo@bar.com"); !ok {
		t.Error("HasKey() = false after successful retry; want true")
	}
}

func TestService_ClaimKey_givesUpAfterMaxAttempts(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	store := &fakeStore{failWrites: claimAttempts}
	svc := NewService(store)

	if err := svc.ClaimKey(ctx, CategoryOfficer, "foo@bar.com"); err == nil {
		t.Error("ClaimKey() succeeded; want error after exhausted attempts")
	}
	if store.writes != claimAttempts {
		t.Errorf("store.writes = %d; want %d", store.writes, claimAttempts)
	}
}
