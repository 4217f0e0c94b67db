package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core/registry"
)

// store keeps the registry as a single versioned jsonb row. Unlike the file
// and blob backends, writes run in a transaction that locks the row and
// unions the incoming snapshot with the stored one; since the registry only
// grows, this removes the lost-update window of the optimistic
// read-modify-write pattern.
type store struct {
	db *sqlx.DB
}

var _ registry.Store = (*store)(nil) // interface compliance check

func NewStore(db *sqlx.DB) registry.Store {
	return &store{db: db}
}

func (s *store) ReadRegistry(ctx context.Context) (registry.Registry, error) {
	var data []byte
	err := s.db.QueryRowxContext(ctx, `SELECT snapshot FROM registry_snapshot WHERE id = 1`).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		// first read: initialize and persist the empty default
		reg := registry.Default()
		if err = s.insertDefault(ctx, reg); err != nil {
			return registry.Registry{}, err
		}
		return reg, nil
	case err != nil:
		return registry.Registry{}, errors.Wrap(err, "reading registry snapshot")
	}
	return registry.Decode(data), nil
}

func (s *store) WriteRegistry(ctx context.Context, reg registry.Registry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var data []byte
	err = tx.QueryRowxContext(ctx, `SELECT snapshot FROM registry_snapshot WHERE id = 1 FOR UPDATE`).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		// no row yet; insert below
	case err != nil:
		return errors.Wrap(err, "locking registry snapshot")
	default:
		// merge with the stored snapshot; claims are never lost to a
		// concurrent writer
		stored := registry.Decode(data)
		for _, cat := range registry.AllCategories {
			for _, key := range reg.Keys(cat) {
				stored.Add(cat, key)
			}
		}
		reg = stored
	}

	out, err := json.Marshal(reg)
	if err != nil {
		return errors.Wrap(err, "marshaling registry")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO registry_snapshot (id, snapshot, version) VALUES (1, $1, 1)
		ON CONFLICT (id) DO UPDATE SET snapshot = $1, version = registry_snapshot.version + 1`,
		out,
	)
	if err != nil {
		return errors.Wrap(err, "writing registry snapshot")
	}
	return errors.Wrap(tx.Commit(), "committing registry snapshot")
}

func (s *store) insertDefault(ctx context.Context, reg registry.Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return errors.Wrap(err, "marshaling registry")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registry_snapshot (id, snapshot, version) VALUES (1, $1, 1)
		ON CONFLICT (id) DO NOTHING`,
		data,
	)
	return errors.Wrap(err, "initializing registry snapshot")
}
