package catalog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// CurrentSchemaVersion tracks the on-disk schema shape. Bump when the table
// definitions below change in an incompatible way.
const CurrentSchemaVersion = 1

// Options configures Open.
type Options struct {
	// BusyTimeoutMS is the SQLite busy_timeout in milliseconds. Defaults to 3000.
	BusyTimeoutMS int
}

// Catalog is the durable record backing the refresh planner.
type Catalog struct {
	db   *sql.DB
	path string
	opts Options
}

// Open creates or opens the catalog database at path, always using the
// pure-Go SQLite driver for portability. path == "" opens an in-memory
// database, useful for tests.
func Open(path string, opts Options) (*Catalog, error) {
	db, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	return &Catalog{db: db, path: path, opts: opts}, nil
}

func openDB(path string, opts Options) (*sql.DB, error) {
	busyMS := opts.BusyTimeoutMS
	if busyMS <= 0 {
		busyMS = 3000
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := checkIntegrity(path); err != nil {
			slog.Warn("catalog_corrupted", slog.String("path", path), slog.String("error", err.Error()))
			if removeErr := removeIfExists(path); removeErr != nil {
				return nil, fmt.Errorf("catalog corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, err)
			}
			_ = removeIfExists(path + "-wal")
			_ = removeIfExists(path + "-shm")
			slog.Info("catalog_cleared", slog.String("path", path), slog.String("reason", "corruption detected, reindex required"))
		}
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, busyMS)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	// A single writer connection avoids SQLITE_BUSY under modernc.org/sqlite's
	// connection pool, mirroring the store package's BM25 index setup.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyMS),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Reset closes the catalog, deletes its on-disk file (and WAL/SHM
// siblings), and reopens a fresh empty database at the same path. A
// catalog opened in-memory (path == "") is replaced by a new, empty
// in-memory database.
func (c *Catalog) Reset() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog reset: close: %w", err)
	}
	if c.path != "" {
		if err := removeIfExists(c.path); err != nil {
			return fmt.Errorf("catalog reset: remove %s: %w", c.path, err)
		}
		_ = removeIfExists(c.path + "-wal")
		_ = removeIfExists(c.path + "-shm")
	}
	db, err := openDB(c.path, c.opts)
	if err != nil {
		return fmt.Errorf("catalog reset: reopen: %w", err)
	}
	c.db = db
	return nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tag_catalog (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			directory TEXT NOT NULL,
			branch TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			path TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			last_updated INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS global_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cache_key TEXT NOT NULL,
			directory TEXT NOT NULL,
			branch TEXT NOT NULL,
			artifact_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_content (
			path TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (path, cache_key)
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			data BLOB NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_trigram USING fts5(
			path, cache_key, content, tokenize='trigram'
		)`,
		`CREATE TABLE IF NOT EXISTS kv_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := dedupeLegacyRows(db); err != nil {
		return err
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tag_catalog_unique
			ON tag_catalog(directory, branch, artifact_id, path, cache_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_global_cache_unique
			ON global_cache(cache_key, directory, branch, artifact_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tag_catalog_tag
			ON tag_catalog(directory, branch, artifact_id)`,
		`CREATE INDEX IF NOT EXISTS idx_global_cache_key
			ON global_cache(cache_key, artifact_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_file
			ON chunks(path, cache_key)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// dedupeLegacyRows removes duplicate rows sharing a uniqueness tuple,
// keeping the lowest id, before the unique indexes are installed.
func dedupeLegacyRows(db *sql.DB) error {
	stmts := []string{
		`DELETE FROM tag_catalog WHERE id NOT IN (
			SELECT MIN(id) FROM tag_catalog
			GROUP BY directory, branch, artifact_id, path, cache_key
		)`,
		`DELETE FROM global_cache WHERE id NOT IN (
			SELECT MIN(id) FROM global_cache
			GROUP BY cache_key, directory, branch, artifact_id
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dedupe legacy rows: %w", err)
		}
	}
	return nil
}

// GetSavedItems returns the tag's current view of the catalog: one row per
// path, the latest cache_key and timestamp seen for it.
func (c *Catalog) GetSavedItems(tag Tag) ([]SavedItem, error) {
	rows, err := c.db.Query(
		`SELECT path, cache_key, MAX(last_updated)
		 FROM tag_catalog
		 WHERE directory = ? AND branch = ? AND artifact_id = ?
		 GROUP BY path`,
		tag.Directory, tag.Branch, tag.ArtifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("get saved items: %w", err)
	}
	defer rows.Close()

	var items []SavedItem
	for rows.Next() {
		var it SavedItem
		var unixSec int64
		if err := rows.Scan(&it.Path, &it.CacheKey, &unixSec); err != nil {
			return nil, fmt.Errorf("scan saved item: %w", err)
		}
		it.LastUpdated = time.Unix(unixSec, 0).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}

// AllRows returns every (path, cache_key, last_updated) row stored for the
// tag, including superseded cache_keys for a given path. GetSavedItems
// collapses this to one row per path; planning needs the full history to
// classify stale versions.
func (c *Catalog) AllRows(tag Tag) ([]SavedItem, error) {
	rows, err := c.db.Query(
		`SELECT path, cache_key, last_updated FROM tag_catalog
		 WHERE directory = ? AND branch = ? AND artifact_id = ?`,
		tag.Directory, tag.Branch, tag.ArtifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("all rows: %w", err)
	}
	defer rows.Close()

	var items []SavedItem
	for rows.Next() {
		var it SavedItem
		var unixSec int64
		if err := rows.Scan(&it.Path, &it.CacheKey, &unixSec); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		it.LastUpdated = time.Unix(unixSec, 0).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetTagsFor returns every tag under which cache_key currently appears in
// the global cache for the given artifact.
func (c *Catalog) GetTagsFor(cacheKey, artifactID string) ([]Tag, error) {
	rows, err := c.db.Query(
		`SELECT directory, branch, artifact_id FROM global_cache
		 WHERE cache_key = ? AND artifact_id = ?`,
		cacheKey, artifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("get tags for: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Directory, &t.Branch, &t.ArtifactID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Apply mutates the catalog for one tag according to kind.
func (c *Catalog) Apply(tag Tag, items []PathAndCacheKey, kind ApplyKind) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()

	switch kind {
	case Compute, Add, UpdateNewVersion:
		for _, it := range items {
			if _, err := tx.Exec(
				`INSERT INTO tag_catalog(directory, branch, artifact_id, path, cache_key, last_updated)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(directory, branch, artifact_id, path, cache_key)
				 DO UPDATE SET last_updated = excluded.last_updated`,
				tag.Directory, tag.Branch, tag.ArtifactID, it.Path, it.CacheKey, now,
			); err != nil {
				return fmt.Errorf("apply %s: upsert tag_catalog: %w", kind, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO global_cache(cache_key, directory, branch, artifact_id)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(cache_key, directory, branch, artifact_id) DO NOTHING`,
				it.CacheKey, tag.Directory, tag.Branch, tag.ArtifactID,
			); err != nil {
				return fmt.Errorf("apply %s: upsert global_cache: %w", kind, err)
			}
		}

	case Remove:
		for _, it := range items {
			if _, err := tx.Exec(
				`DELETE FROM tag_catalog
				 WHERE directory = ? AND branch = ? AND artifact_id = ? AND path = ? AND cache_key = ?`,
				tag.Directory, tag.Branch, tag.ArtifactID, it.Path, it.CacheKey,
			); err != nil {
				return fmt.Errorf("apply remove: delete tag_catalog: %w", err)
			}
			if _, err := tx.Exec(
				`DELETE FROM global_cache
				 WHERE cache_key = ? AND directory = ? AND branch = ? AND artifact_id = ?`,
				it.CacheKey, tag.Directory, tag.Branch, tag.ArtifactID,
			); err != nil {
				return fmt.Errorf("apply remove: delete global_cache: %w", err)
			}
		}

	case UpdateLastUpdated:
		for _, it := range items {
			if _, err := tx.Exec(
				`UPDATE tag_catalog SET cache_key = ?, last_updated = ?
				 WHERE directory = ? AND branch = ? AND artifact_id = ? AND path = ?`,
				it.CacheKey, now, tag.Directory, tag.Branch, tag.ArtifactID, it.Path,
			); err != nil {
				return fmt.Errorf("apply update_last_updated: %w", err)
			}
		}

	case UpdateOldVersion:
		// Accounting only; the superseding UpdateNewVersion row already
		// carries the new cache_key forward.

	default:
		return fmt.Errorf("apply: unknown kind %v", kind)
	}

	return tx.Commit()
}

// State returns a small persisted key/value, used for bookkeeping such as
// embedding dimension or indexing checkpoints. ok is false when absent.
func (c *Catalog) State(key string) (value string, ok bool, err error) {
	err = c.db.QueryRow(`SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// SetState persists a small key/value pair.
func (c *Catalog) SetState(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO kv_state(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// SaveChunks upserts one or more opaque chunk rows in a single transaction.
func (c *Catalog) SaveChunks(rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("save chunks: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range rows {
		if _, err := tx.Exec(
			`INSERT INTO chunks(id, path, cache_key, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET path = excluded.path, cache_key = excluded.cache_key, data = excluded.data`,
			r.ID, r.Path, r.CacheKey, r.Data,
		); err != nil {
			return fmt.Errorf("save chunks: upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunk returns one chunk row by id. ok is false when absent.
func (c *Catalog) GetChunk(id string) (row ChunkRow, ok bool, err error) {
	row.ID = id
	err = c.db.QueryRow(`SELECT path, cache_key, data FROM chunks WHERE id = ?`, id).
		Scan(&row.Path, &row.CacheKey, &row.Data)
	if err == sql.ErrNoRows {
		return ChunkRow{}, false, nil
	}
	if err != nil {
		return ChunkRow{}, false, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return row, true, nil
}

// GetChunks returns the rows matching the given ids, in no particular order.
// Missing ids are silently omitted.
func (c *Catalog) GetChunks(ids []string) ([]ChunkRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, path, cache_key, data FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.ID, &r.Path, &r.CacheKey, &r.Data); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetChunksByFile returns every chunk stored for one (path, cache_key) file version.
func (c *Catalog) GetChunksByFile(path, cacheKey string) ([]ChunkRow, error) {
	rows, err := c.db.Query(`SELECT id, path, cache_key, data FROM chunks WHERE path = ? AND cache_key = ?`, path, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("get chunks by file: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.ID, &r.Path, &r.CacheKey, &r.Data); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteChunks removes chunk rows by id.
func (c *Catalog) DeleteChunks(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("delete chunks: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteChunksByFile removes every chunk stored for one (path, cache_key) file version.
func (c *Catalog) DeleteChunksByFile(path, cacheKey string) error {
	_, err := c.db.Exec(`DELETE FROM chunks WHERE path = ? AND cache_key = ?`, path, cacheKey)
	if err != nil {
		return fmt.Errorf("delete chunks by file: %w", err)
	}
	return nil
}

// IndexChunkContent records a chunk's searchable content for full-text
// search, keyed by the same (path, cache_key) the tag catalog uses.
func (c *Catalog) IndexChunkContent(path, cacheKey, content string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("index chunk content: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		`INSERT INTO chunk_content(path, cache_key, content) VALUES (?, ?, ?)
		 ON CONFLICT(path, cache_key) DO UPDATE SET content = excluded.content`,
		path, cacheKey, content,
	); err != nil {
		return fmt.Errorf("index chunk content: upsert chunk_content: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM fts_trigram WHERE path = ? AND cache_key = ?`, path, cacheKey,
	); err != nil {
		return fmt.Errorf("index chunk content: clear fts row: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO fts_trigram(path, cache_key, content) VALUES (?, ?, ?)`,
		path, cacheKey, content,
	); err != nil {
		return fmt.Errorf("index chunk content: insert fts row: %w", err)
	}
	return tx.Commit()
}

// RemoveChunkContent deletes a (path, cache_key)'s full-text content.
func (c *Catalog) RemoveChunkContent(path, cacheKey string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("remove chunk content: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM chunk_content WHERE path = ? AND cache_key = ?`, path, cacheKey); err != nil {
		return fmt.Errorf("remove chunk content: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM fts_trigram WHERE path = ? AND cache_key = ?`, path, cacheKey); err != nil {
		return fmt.Errorf("remove fts row: %w", err)
	}
	return tx.Commit()
}

// SearchFTS runs a trigram full-text query, returning the (path, cache_key) of each matching row.
func (c *Catalog) SearchFTS(query string, limit int) ([]PathAndCacheKey, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.Query(
		`SELECT path, cache_key FROM fts_trigram WHERE fts_trigram MATCH ? LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()

	var out []PathAndCacheKey
	for rows.Next() {
		var pk PathAndCacheKey
		if err := rows.Scan(&pk.Path, &pk.CacheKey); err != nil {
			return nil, fmt.Errorf("scan fts result: %w", err)
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

// Clear removes the tag's rows from global_cache and tag_catalog, leaving
// rows of other tags intact. The other catalog tables (chunk, full-text and
// state rows) are not touched.
func (c *Catalog) Clear(tag Tag) error {
	_, err := c.db.Exec(
		`DELETE FROM global_cache WHERE directory = ? AND branch = ? AND artifact_id = ?`,
		tag.Directory, tag.Branch, tag.ArtifactID,
	)
	if err != nil {
		return fmt.Errorf("clear: delete global_cache: %w", err)
	}
	_, err = c.db.Exec(
		`DELETE FROM tag_catalog WHERE directory = ? AND branch = ? AND artifact_id = ?`,
		tag.Directory, tag.Branch, tag.ArtifactID,
	)
	if err != nil {
		return fmt.Errorf("clear: delete tag_catalog: %w", err)
	}
	return nil
}

// checkIntegrity opens path read-only and runs a quick integrity check,
// mirroring the store package's BM25 corruption check.
func checkIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// removeIfExists deletes a path if present, ignoring a missing file. Used by
// callers that want to drop a corrupted catalog file before reopening.
func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
