package processed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tprelay/internal/sqlitedb"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}

	store, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_messages (
			message_key TEXT PRIMARY KEY,
			token TEXT,
			outcome TEXT NOT NULL,
			processed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS processed_messages_processed_at ON processed_messages(processed_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate processed schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_messages WHERE message_key = ?`, key)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("query processed marker: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) Mark(ctx context.Context, marker Marker) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processed_messages(message_key, token, outcome, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_key) DO UPDATE SET
		   token = excluded.token,
		   outcome = excluded.outcome,
		   processed_at = excluded.processed_at`,
		marker.Key,
		marker.Token,
		string(marker.Outcome),
		sqlitedb.FormatTime(marker.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("insert processed marker: %w", err)
	}
	return nil
}

// Prune deletes markers processed before olderThan. Stored timestamps are
// fixed-width UTC text, so the comparison happens in SQL.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM processed_messages WHERE processed_at < ?`,
		sqlitedb.FormatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("prune processed markers: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune processed markers rows affected: %w", err)
	}
	return int(removed), nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Marker, error) {
	query := `SELECT message_key, token, outcome, processed_at
		 FROM processed_messages
		 ORDER BY processed_at DESC, message_key ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed markers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]Marker, 0)
	for rows.Next() {
		var (
			marker       Marker
			token        sql.NullString
			outcome      string
			processedRaw string
		)
		if err := rows.Scan(&marker.Key, &token, &outcome, &processedRaw); err != nil {
			return nil, fmt.Errorf("scan processed marker: %w", err)
		}
		marker.Token = token.String
		marker.Outcome = Outcome(outcome)
		processedAt, err := sqlitedb.ParseTime(processedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		marker.ProcessedAt = processedAt
		result = append(result, marker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed markers: %w", err)
	}
	return result, nil
}
