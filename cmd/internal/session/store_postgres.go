package session

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on shieldgate.session_state, a single
// key/value table. One row per field keeps the record shape identical to the
// browser-side store this controller replaces.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the backing table when it does not exist yet. The
// schema is a single KV table, so in-process DDL beats dragging in a
// migration toolchain.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS shieldgate;
		CREATE TABLE IF NOT EXISTS shieldgate.session_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

// Load reads all fields in one statement and decodes them. A partial record
// yields the empty Session + ErrCorruptRecord.
func (s *PostgresStore) Load(ctx context.Context) (Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value
		FROM shieldgate.session_state
		WHERE key = ANY($1)
	`, StoreKeys)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	fields := make(map[string]string, len(StoreKeys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Session{}, err
		}
		fields[k] = v
	}
	if err := rows.Err(); err != nil {
		return Session{}, err
	}

	return decodeRecord(fields)
}

// Save replaces the written fields inside a single transaction, so a reader
// can never observe a token without its role.
func (s *PostgresStore) Save(ctx context.Context, sess Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec := encodeRecord(sess)
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM shieldgate.session_state WHERE key = ANY($1)
	`, keys); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for k, v := range rec {
		if v == "" {
			continue
		}
		batch.Queue(`INSERT INTO shieldgate.session_state (key, value) VALUES ($1, $2)`, k, v)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Clear deletes every key the store may ever have written, including the
// legacy role key from earlier releases.
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM shieldgate.session_state WHERE key = ANY($1)
	`, StoreKeys)
	return err
}
