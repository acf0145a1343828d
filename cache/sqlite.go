package cache

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ns     INTEGER NOT NULL
);
`

// sqliteStore persists entries in a single-table SQLite database so cached
// values survive process restarts. created_at is unix nanoseconds.
type sqliteStore struct {
	db *sql.DB
}

func openSQLiteStore(path string) (*sqliteStore, error) {
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open cache db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping cache db")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create cache schema")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) get(key string) (Entry, bool) {
	var (
		data      []byte
		createdAt int64
		ttl       int64
	)
	row := s.db.QueryRow(`SELECT data, created_at, ttl_ns FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&data, &createdAt, &ttl); err != nil {
		return Entry{}, false
	}
	return Entry{
		Key:       key,
		Data:      data,
		CreatedAt: time.Unix(0, createdAt),
		TTL:       time.Duration(ttl),
	}, true
}

func (s *sqliteStore) set(entry Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, data, created_at, ttl_ns) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at, ttl_ns = excluded.ttl_ns`,
		entry.Key, entry.Data, entry.CreatedAt.UnixNano(), int64(entry.TTL))
	return errors.Wrap(err, "write cache entry")
}

func (s *sqliteStore) delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return errors.Wrap(err, "delete cache entry")
}

func (s *sqliteStore) clear() error {
	_, err := s.db.Exec(`DELETE FROM cache_entries`)
	return errors.Wrap(err, "clear cache entries")
}

func (s *sqliteStore) deletePrefix(prefix string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return 0, errors.Wrap(err, "delete cache entries by prefix")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// escapeLike neutralizes LIKE wildcards so a literal prefix such as
// "person_photos:" does not match unrelated keys.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *sqliteStore) size() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// sweep drops expired rows and rows that cannot be decoded (corrupt payload
// or nonsensical timestamps). Returns expired and corrupt counts.
func (s *sqliteStore) sweep(now time.Time) (expired, corrupt int, err error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE ? - created_at > ttl_ns`, now.UnixNano())
	if err != nil {
		return 0, 0, errors.Wrap(err, "sweep expired cache entries")
	}
	if n, err := res.RowsAffected(); err == nil {
		expired = int(n)
	}

	rows, err := s.db.Query(`SELECT key, data, created_at, ttl_ns FROM cache_entries`)
	if err != nil {
		return expired, 0, errors.Wrap(err, "scan cache entries")
	}
	defer rows.Close()

	var corruptKeys []string
	for rows.Next() {
		var (
			key       string
			data      []byte
			createdAt int64
			ttl       int64
		)
		if err := rows.Scan(&key, &data, &createdAt, &ttl); err != nil {
			continue
		}
		if createdAt <= 0 || ttl <= 0 || !json.Valid(data) {
			corruptKeys = append(corruptKeys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return expired, 0, errors.Wrap(err, "iterate cache entries")
	}

	for _, key := range corruptKeys {
		if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err == nil {
			corrupt++
		}
	}
	return expired, corrupt, nil
}

func (s *sqliteStore) close() error {
	return errors.Wrap(s.db.Close(), "close cache db")
}
