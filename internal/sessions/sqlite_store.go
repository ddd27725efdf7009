package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			tmux_session TEXT NOT NULL,
			work_dir TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			command_count INTEGER NOT NULL DEFAULT 0,
			command_limit INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS injections (
			injection_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			target TEXT NOT NULL,
			strategy TEXT NOT NULL,
			command TEXT NOT NULL,
			confirmations TEXT,
			manual INTEGER NOT NULL DEFAULT 0,
			injected_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS injections_injected_at ON injections(injected_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate sessions schema: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session Session) error {
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions(token, kind, tmux_session, work_dir, created_at, expires_at, command_count, command_limit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO NOTHING`,
		session.Token,
		string(session.Kind),
		session.TmuxSession,
		session.WorkDir,
		sqlitedb.FormatTime(session.CreatedAt),
		sqlitedb.FormatTime(session.ExpiresAt),
		session.CommandCount,
		session.CommandLimit,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert session rows affected: %w", err)
	}
	if inserted == 0 {
		return ErrSessionExists
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (Session, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT token, kind, tmux_session, work_dir, created_at, expires_at, command_count, command_limit
		 FROM sessions WHERE token = ?`,
		token,
	)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return session, true, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, session Session) error {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET
		   kind = ?,
		   tmux_session = ?,
		   work_dir = ?,
		   expires_at = ?,
		   command_count = ?,
		   command_limit = ?
		 WHERE token = ?`,
		string(session.Kind),
		session.TmuxSession,
		session.WorkDir,
		sqlitedb.FormatTime(session.ExpiresAt),
		session.CommandCount,
		session.CommandLimit,
		session.Token,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT token, kind, tmux_session, work_dir, created_at, expires_at, command_count, command_limit
		 FROM sessions
		 ORDER BY created_at DESC, token ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) RecordInjection(ctx context.Context, entry Injection) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO injections(injection_id, token, target, strategy, command, confirmations, manual, injected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Token,
		entry.Target,
		entry.Strategy,
		entry.Command,
		nullIfEmpty(strings.Join(entry.Confirmations, "\n")),
		boolToInt(entry.Manual),
		sqlitedb.FormatTime(entry.InjectedAt),
	)
	if err != nil {
		return fmt.Errorf("insert injection: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInjections(ctx context.Context, limit int) ([]Injection, error) {
	query := `SELECT injection_id, token, target, strategy, command, confirmations, manual, injected_at
		 FROM injections
		 ORDER BY injected_at DESC, injection_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query injections: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]Injection, 0)
	for rows.Next() {
		var (
			entry         Injection
			confirmations sql.NullString
			manual        int
			injectedAtRaw string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Token,
			&entry.Target,
			&entry.Strategy,
			&entry.Command,
			&confirmations,
			&manual,
			&injectedAtRaw,
		); err != nil {
			return nil, fmt.Errorf("scan injection: %w", err)
		}
		if confirmations.Valid && confirmations.String != "" {
			entry.Confirmations = strings.Split(confirmations.String, "\n")
		}
		entry.Manual = manual != 0
		injectedAt, err := sqlitedb.ParseTime(injectedAtRaw)
		if err != nil {
			return nil, fmt.Errorf("parse injection injected_at: %w", err)
		}
		entry.InjectedAt = injectedAt
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate injections: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		session      Session
		kind         string
		createdAtRaw string
		expiresAtRaw string
	)

	err := row.Scan(
		&session.Token,
		&kind,
		&session.TmuxSession,
		&session.WorkDir,
		&createdAtRaw,
		&expiresAtRaw,
		&session.CommandCount,
		&session.CommandLimit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	session.Kind = Kind(kind)
	createdAt, err := sqlitedb.ParseTime(createdAtRaw)
	if err != nil {
		return Session{}, fmt.Errorf("parse session created_at: %w", err)
	}
	expiresAt, err := sqlitedb.ParseTime(expiresAtRaw)
	if err != nil {
		return Session{}, fmt.Errorf("parse session expires_at: %w", err)
	}
	session.CreatedAt = createdAt
	session.ExpiresAt = expiresAt

	return session, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
