package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core/registry"
)

// store keeps the whole registry in a single JSON file. Every read hits the
// disk; writes replace the full snapshot.
type store struct {
	path string
}

var _ registry.Store = (*store)(nil) // interface compliance check

func NewStore(path string) registry.Store {
	return &store{path: path}
}

func (s *store) ReadRegistry(ctx context.Context) (registry.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return registry.Registry{}, errors.Wrapf(err, "reading %s", s.path)
		}
		// first read: initialize and persist the empty default
		reg := registry.Default()
		if err = s.WriteRegistry(ctx, reg); err != nil {
			return registry.Registry{}, err
		}
		return reg, nil
	}
	return registry.Decode(data), nil
}

func (s *store) WriteRegistry(_ context.Context, reg registry.Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling registry")
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(s.path))
	}
	if err = os.WriteFile(s.path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", s.path)
	}
	return nil
}
