package main

import (
	"database/sql"
	"fmt"

	"tprelay/internal/config"
	"tprelay/internal/processed"
	"tprelay/internal/sessions"
	"tprelay/internal/sqlitedb"
)

type storeSet struct {
	db       *sql.DB
	sessions sessions.Store
	audit    sessions.AuditLog
	markers  processed.Store
}

// openStores opens the state database. The audit log and processed
// markers always live there; sessions do too unless the file backend is
// configured.
func openStores(cfg *config.Config) (*storeSet, error) {
	db, err := sqlitedb.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	sqliteSessions, err := sessions.NewSQLiteStoreFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	markers, err := processed.NewSQLiteStoreFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open processed store: %w", err)
	}

	set := &storeSet{
		db:       db,
		sessions: sqliteSessions,
		audit:    sqliteSessions,
		markers:  markers,
	}
	if cfg.Sessions.Backend == "file" {
		set.sessions = sessions.NewFileStore(cfg.SessionsFile())
	}
	return set, nil
}

func (s *storeSet) Close() {
	_ = s.db.Close()
}
