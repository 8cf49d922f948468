package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"travel-planner/models"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStore is a file-backed key-value table for clients without Redis.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return raw, err
}

func (s *SQLiteStore) LoadCollections(ctx context.Context) ([]models.Place, []models.Place, error) {
	w, err := s.get(ctx, KeyWantToGo)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", KeyWantToGo, err)
	}
	v, err := s.get(ctx, KeyVisited)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", KeyVisited, err)
	}
	return decodeList(s.logger, KeyWantToGo, w), decodeList(s.logger, KeyVisited, v), nil
}

func (s *SQLiteStore) SaveCollections(ctx context.Context, wantToGo, visited []models.Place) error {
	w, err := encodeList(wantToGo)
	if err != nil {
		return err
	}
	v, err := encodeList(visited)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, KeyWantToGo, w); err != nil {
		return fmt.Errorf("saving %s: %w", KeyWantToGo, err)
	}
	if _, err := tx.ExecContext(ctx, upsert, KeyVisited, v); err != nil {
		return fmt.Errorf("saving %s: %w", KeyVisited, err)
	}
	return tx.Commit()
}

// setRaw is used by tests to plant corrupt values.
func (s *SQLiteStore) setRaw(ctx context.Context, key string, raw []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, raw)
	return err
}
