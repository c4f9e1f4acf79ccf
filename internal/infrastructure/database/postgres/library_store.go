package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// LibraryStore persists libraries in the synthon_libraries / synthon_entries
// tables created by the migrations.
type LibraryStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewLibraryStore wraps a connection pool.
func NewLibraryStore(pool *pgxpool.Pool, log logging.Logger) *LibraryStore {
	return &LibraryStore{pool: pool, log: log.Named("library_store")}
}

// Save upserts lib under the given name.  Existing entry tallies are
// incremented, matching Library.Merge, so repeated saves of build shards
// accumulate rather than overwrite.  The whole save is one transaction.
func (s *LibraryStore) Save(ctx context.Context, name string, lib *library.Library) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "begin save transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var libID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO synthon_libraries (name, dim, insufficient_sample)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET insufficient_sample = synthon_libraries.insufficient_sample OR EXCLUDED.insufficient_sample
		RETURNING id`,
		name, lib.Dim(), lib.InsufficientSample).Scan(&libID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "upsert library row")
	}

	batch := &pgx.Batch{}
	for _, e := range lib.Entries() {
		batch.Queue(`
			INSERT INTO synthon_entries (library_id, synthon_key, tally, vector)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (library_id, synthon_key) DO UPDATE
			SET tally = synthon_entries.tally + EXCLUDED.tally`,
			libID, e.Key, e.Tally, e.Vector)
	}
	res := tx.SendBatch(ctx, batch)
	for range lib.Entries() {
		if _, err := res.Exec(); err != nil {
			_ = res.Close()
			return errors.Wrap(err, errors.CodeDatabaseError, "upsert library entry")
		}
	}
	if err := res.Close(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "flush entry batch")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "commit library save")
	}
	s.log.Info("library saved",
		logging.String("name", name),
		logging.Int("entries", lib.Len()))
	return nil
}

// Load reads a named library back into memory.
func (s *LibraryStore) Load(ctx context.Context, name string) (*library.Library, error) {
	var (
		libID        int64
		dim          int
		insufficient bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, dim, insufficient_sample FROM synthon_libraries WHERE name = $1`,
		name).Scan(&libID, &dim, &insufficient)
	if err == pgx.ErrNoRows {
		return nil, errors.Newf(errors.CodeLibraryNotFound, "library %q not found", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "query library row")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT synthon_key, tally, vector FROM synthon_entries WHERE library_id = $1 ORDER BY synthon_key`,
		libID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "query library entries")
	}
	defer rows.Close()

	lib := library.New(dim)
	lib.InsufficientSample = insufficient
	for rows.Next() {
		var e library.Entry
		if err := rows.Scan(&e.Key, &e.Tally, &e.Vector); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "scan library entry")
		}
		if len(e.Vector) != dim {
			return nil, errors.Newf(errors.CodeLibraryCorrupt,
				"entry %q has vector dim %d, library dim %d", e.Key, len(e.Vector), dim)
		}
		if err := lib.Add(e.Key, e.Tally, e.Vector); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "iterate library entries")
	}
	return lib, nil
}

// Delete removes a named library and its entries.
func (s *LibraryStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM synthon_libraries WHERE name = $1`, name)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "delete library")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodeLibraryNotFound, "library %q not found", name)
	}
	return nil
}
