//go:build !purego

package metadata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteCache backs the memoization table with a single-file SQLite
// database, so a cache built with a non-empty path survives across
// process runs. Keyed on (path, size, mtime_ticks): any change to either
// invalidates the stored row.
type sqliteCache struct {
	mu sync.Mutex
	db *sql.DB
}

// NewCache opens (creating if necessary) a SQLite-backed cache at dbPath.
// An empty dbPath uses an in-process, non-persistent database — useful
// for a single run that still wants memoization against repeated reads
// of the same file within that run.
func NewCache(dbPath string) (Cache, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("metadata: opening cache db: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS metadata_cache (
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime_ticks INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (path, size, mtime_ticks)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: creating cache schema: %w", err)
	}
	return &sqliteCache{db: db}, nil
}

func (c *sqliteCache) Get(path string, info os.FileInfo) (*ImageMetadata, bool) {
	size, mtime := cacheStamp(info)
	c.mu.Lock()
	defer c.mu.Unlock()
	row := c.db.QueryRow(
		`SELECT payload FROM metadata_cache WHERE path = ? AND size = ? AND mtime_ticks = ?`,
		path, size, mtime,
	)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, false
	}
	var m ImageMetadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *sqliteCache) Put(path string, info os.FileInfo, m *ImageMetadata) {
	size, mtime := cacheStamp(info)
	payload, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.db.Exec(
		`INSERT OR REPLACE INTO metadata_cache (path, size, mtime_ticks, payload) VALUES (?, ?, ?, ?)`,
		path, size, mtime, payload,
	)
}

func (c *sqliteCache) Close() error {
	return c.db.Close()
}
