package worker

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/sqlite"
)

// SQLiteProvider caches module sources in a SQLite database. On a
// miss it falls through to the inner provider and stores the result,
// so repeated worker startups skip the network.
type SQLiteProvider struct {
	db    *sql.DB
	inner SourceProvider
}

// NewSQLiteProvider opens (creating if needed) the cache database at
// path. inner may be nil, in which case misses are errors.
func NewSQLiteProvider(path string, inner SourceProvider) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("worker: open module cache %q: %w", path, err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS module_sources (
		url        TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("worker: init module cache %q: %w", path, err)
	}
	return &SQLiteProvider{db: db, inner: inner}, nil
}

func (p *SQLiteProvider) GetModuleSource(workerID int, url string) (string, error) {
	var src string
	err := p.db.QueryRow(`SELECT source FROM module_sources WHERE url = ?`, url).Scan(&src)
	if err == nil {
		return src, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("worker: module cache read %q: %w", url, err)
	}

	if p.inner == nil {
		return "", fmt.Errorf("worker: module %q: %w", url, ErrNotFound)
	}
	src, err = p.inner.GetModuleSource(workerID, url)
	if err != nil {
		return "", err
	}
	if err := p.Prime(url, src); err != nil {
		return "", err
	}
	return src, nil
}

// Prime stores source under url, replacing any cached entry.
func (p *SQLiteProvider) Prime(url, source string) error {
	_, err := p.db.Exec(
		`INSERT OR REPLACE INTO module_sources (url, source, fetched_at) VALUES (?, ?, ?)`,
		url, source, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("worker: module cache write %q: %w", url, err)
	}
	return nil
}

func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
