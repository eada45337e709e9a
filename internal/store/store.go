// Package store implements the persistent vector index (C2): SQLite plus
// the sqlite-vec extension for kNN search over manpage summary embeddings.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sgx-labs/mansage/internal/apperr"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Entry is one row of the index: a manpage descriptor plus its vector (§3
// Embedded entry).
type Entry struct {
	Tool    string
	Section string
	Summary string
	Vector  []float32
}

// Match is one search result (§4.2).
type Match struct {
	Tool    string
	Section string
	Summary string
	Score   float64 // L2 distance; lower is more similar
}

// DB wraps a SQLite connection providing the C2 contract. Concurrent
// readers are permitted by the backend; concurrent writers are not (§5) —
// CreateIndex serializes writes through one DB value with the mutex below.
type DB struct {
	path string
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the index database at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "create index directory")
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "open index database")
	}

	var vecVersion string
	if err := conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindBackend, err, "sqlite-vec extension not available")
	}

	return &DB{path: path, conn: conn}, nil
}

// OpenMemory opens an in-memory database, used in tests.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	var vecVersion string
	if err := conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{path: ":memory:", conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Exists reports whether the live manpages table has been created.
func (db *DB) Exists() bool {
	var name string
	err := db.conn.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='manpages'`,
	).Scan(&name)
	return err == nil
}

// Count returns the number of rows in the live index, 0 if no index exists.
func (db *DB) Count() (int, error) {
	if !db.Exists() {
		return 0, nil
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM manpages`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindBackend, err, "count index rows")
	}
	return n, nil
}

// Dimension returns the vector length recorded for the live index, or 0 if
// no index exists.
func (db *DB) Dimension() (int, error) {
	if !db.Exists() {
		return 0, nil
	}
	var d int
	err := db.conn.QueryRow(`SELECT value FROM index_meta WHERE key='dimension'`).Scan(&d)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindBackend, err, "read index dimension")
	}
	return d, nil
}

// CreateIndex rebuilds the live index from entries (§4.2 create_index).
// Atomicity is achieved by building a fresh shadow table, populating it,
// then renaming it over the live table inside one transaction — a failure
// at any point leaves the previous live table untouched.
func (db *DB) CreateIndex(entries []Entry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
		for _, e := range entries {
			if len(e.Vector) != dim {
				return apperr.New(apperr.KindBackend, "entries have inconsistent vector dimensions (%d vs %d)", len(e.Vector), dim)
			}
		}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "begin index rebuild")
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS manpages_new`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "drop stale shadow table")
	}
	if _, err := tx.Exec(`DROP TABLE IF EXISTS manpages_new_vec`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "drop stale shadow vector table")
	}

	if _, err := tx.Exec(`CREATE TABLE manpages_new (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool TEXT NOT NULL,
		section TEXT NOT NULL,
		summary TEXT NOT NULL,
		vector BLOB NOT NULL
	)`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "create shadow table")
	}

	if dim > 0 {
		if _, err := tx.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE manpages_new_vec USING vec0(
			row_id INTEGER PRIMARY KEY,
			vector float[%d]
		)`, dim)); err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "create shadow vector table")
		}
	}

	for _, e := range entries {
		vecBytes, err := sqlite_vec.SerializeFloat32(e.Vector)
		if err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "serialize vector")
		}

		res, err := tx.Exec(
			`INSERT INTO manpages_new (tool, section, summary, vector) VALUES (?, ?, ?, ?)`,
			e.Tool, e.Section, e.Summary, vecBytes,
		)
		if err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "insert manpage row")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "read inserted row id")
		}
		if _, err := tx.Exec(
			`INSERT INTO manpages_new_vec (row_id, vector) VALUES (?, ?)`,
			id, vecBytes,
		); err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "insert vector row")
		}
	}

	if _, err := tx.Exec(`DROP TABLE IF EXISTS manpages`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "drop previous live table")
	}
	if _, err := tx.Exec(`DROP TABLE IF EXISTS manpages_vec`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "drop previous live vector table")
	}
	if _, err := tx.Exec(`ALTER TABLE manpages_new RENAME TO manpages`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "promote shadow table")
	}
	if dim > 0 {
		if _, err := tx.Exec(`ALTER TABLE manpages_new_vec RENAME TO manpages_vec`); err != nil {
			return apperr.Wrap(apperr.KindBackend, err, "promote shadow vector table")
		}
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS index_meta (key TEXT PRIMARY KEY, value INTEGER NOT NULL)`); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "create index_meta table")
	}
	if _, err := tx.Exec(
		`INSERT INTO index_meta (key, value) VALUES ('dimension', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		dim,
	); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "record index dimension")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindBackend, err, "commit index rebuild")
	}
	committed = true
	return nil
}

// Search returns the k nearest rows to queryVec by L2 distance, ascending,
// ties broken by row id ascending (§4.2 P3).
func (db *DB) Search(queryVec []float32, k int) ([]Match, error) {
	if !db.Exists() {
		return nil, apperr.New(apperr.KindIndexMissing, "no vector index exists yet")
	}

	dim, err := db.Dimension()
	if err != nil {
		return nil, err
	}
	if dim > 0 && len(queryVec) != dim {
		return nil, apperr.SchemaMismatch(dim, len(queryVec))
	}

	count, err := db.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	vecBytes, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "serialize query vector")
	}

	rows, err := db.conn.Query(`
		SELECT m.tool, m.section, m.summary, v.distance
		FROM manpages_vec v
		JOIN manpages m ON m.id = v.row_id
		WHERE v.vector MATCH ? AND k = ?
		ORDER BY v.distance ASC, m.id ASC`,
		vecBytes, k,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "vector search")
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Tool, &m.Section, &m.Summary, &m.Score); err != nil {
			return nil, apperr.Wrap(apperr.KindBackend, err, "scan search row")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "iterate search rows")
	}
	return matches, nil
}

// All returns every row in the live index, decoding each stored vector
// back into []float32. Used by incremental rebuilds to carry forward rows
// that were not re-embedded this run.
func (db *DB) All() ([]Entry, error) {
	if !db.Exists() {
		return nil, nil
	}
	rows, err := db.conn.Query(`SELECT tool, section, summary, vector FROM manpages`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "read all index rows")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.Tool, &e.Section, &e.Summary, &blob); err != nil {
			return nil, apperr.Wrap(apperr.KindBackend, err, "scan index row")
		}
		e.Vector = decodeFloat32Blob(blob)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "iterate index rows")
	}
	return entries, nil
}

// decodeFloat32Blob reverses sqlite_vec.SerializeFloat32's little-endian
// float32 array encoding.
func decodeFloat32Blob(blob []byte) []float32 {
	n := len(blob) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
