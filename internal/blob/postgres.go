package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps objects as rows of a single bytea table
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates the blobs table if it does not exist
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	query := `
		CREATE TABLE IF NOT EXISTS blobs (
			key          TEXT PRIMARY KEY,
			content_type TEXT NOT NULL,
			data         BYTEA NOT NULL,
			modified_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)
	`
	if _, err := db.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create blobs table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Put inserts or replaces the row for key
func (s *PostgresStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	query := `
		INSERT INTO blobs (key, content_type, data, modified_at)
		VALUES ($1, $2, $3, clock_timestamp())
		ON CONFLICT (key) DO UPDATE
		SET content_type = EXCLUDED.content_type,
		    data = EXCLUDED.data,
		    modified_at = EXCLUDED.modified_at
	`
	if _, err := s.db.Exec(ctx, query, key, contentType, data); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	return nil
}

// Get reads the row for key
func (s *PostgresStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	query := `
		SELECT content_type, data, modified_at
		FROM blobs
		WHERE key = $1
	`
	var data []byte
	info := ObjectInfo{Key: key}
	err := s.db.QueryRow(ctx, query, key).Scan(&info.ContentType, &data, &info.ModTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	info.Size = int64(len(data))
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Delete removes the row for key
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", key, ErrNotFound)
	}
	return nil
}

// List returns every row whose key starts with prefix
func (s *PostgresStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	query := `
		SELECT key, content_type, octet_length(data), modified_at
		FROM blobs
		WHERE starts_with(key, $1)
		ORDER BY key
	`
	rows, err := s.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var infos []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.Key, &info.ContentType, &info.Size, &info.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan blob: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blobs: %w", err)
	}
	return infos, nil
}
