package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a key-partitioned item store over sqlite. Every entity family
// (requests, library members, the GUID cache, rate-limit buckets, push
// subscriptions) lives in one keyspace addressed by (partition, sort).
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			partition  TEXT NOT NULL,
			sort       TEXT NOT NULL,
			attrs      TEXT NOT NULL,
			expires_at INTEGER,
			version    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (partition, sort)
		);
		CREATE INDEX IF NOT EXISTS idx_items_expires ON items(expires_at) WHERE expires_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}
