package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Connection pragmas. WAL keeps readers unblocked during scan batches,
// busy_timeout rides out writer contention instead of failing with
// "database is locked".
var connPragmas = []string{
	"_journal_mode=WAL",
	"_synchronous=NORMAL",
	"_cache_size=10000",
	"_temp_store=MEMORY",
	"_busy_timeout=5000",
	"_foreign_keys=1",
}

// Database is the SQLite-backed index of the blend library: file records,
// tags, full-text search and cached library statistics.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   LibraryStats
	statsMu sync.RWMutex
	txStart time.Time
}

// New opens (or creates) the index at dbPath and applies the schema.
// dbPath names the database file itself; its parent directory must exist
// and be writable, which startup.LoadConfig has already verified.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(connPragmas, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db, dbPath: dbPath}
	if err := d.connect(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after setup failure: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

// connect verifies the connection, sizes the pool and applies the schema.
func (d *Database) connect(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Listing and search are read-heavy; give them room.
	d.db.SetMaxOpenConns(25)
	d.db.SetMaxIdleConns(10)
	d.db.SetConnMaxLifetime(time.Hour)

	if err := d.initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}

// Schema statements run in order, each idempotent so startup can apply
// them unconditionally. file_tags references files by path rather than id
// so tags survive a file being re-indexed.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		parent_path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		version TEXT,
		compressed INTEGER NOT NULL DEFAULT 0,
		has_thumbnail INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_parent_path ON files(parent_path)`,
	`CREATE INDEX IF NOT EXISTS idx_files_mod_time ON files(mod_time)`,
	`CREATE INDEX IF NOT EXISTS idx_files_name ON files(name COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS idx_files_version ON files(version)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
		name,
		path,
		content='files',
		content_rowid='id',
		tokenize='trigram'
	)`,
	`CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
		INSERT INTO files_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
	END`,
	`CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
		INSERT INTO files_fts(files_fts, rowid, name, path) VALUES('delete', old.id, old.name, old.path);
	END`,
	`CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
		INSERT INTO files_fts(files_fts, rowid, name, path) VALUES('delete', old.id, old.name, old.path);
		INSERT INTO files_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
	END`,

	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		color TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name COLLATE NOCASE)`,

	`CREATE TABLE IF NOT EXISTS file_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(file_path, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_tags_path ON file_tags(file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_file_tags_tag ON file_tags(tag_id)`,

	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
}

func (d *Database) initialize(ctx context.Context) error {
	done := observeQuery("initialize_schema")

	for _, stmt := range schemaStatements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			done(err)
			return err
		}
	}

	err := d.runMigrations(ctx)
	done(err)
	return err
}

// hasColumn reports whether a column exists, for schema migrations on
// databases created by earlier versions.
func (d *Database) hasColumn(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&exists)
	return exists, err
}

func (d *Database) runMigrations(ctx context.Context) error {
	exists, err := d.hasColumn(ctx, "files", "has_thumbnail")
	if err != nil {
		return fmt.Errorf("failed to check for has_thumbnail column: %w", err)
	}
	if exists {
		return nil
	}

	logging.Info("Migrating database: adding has_thumbnail column to files table")
	if _, err := d.db.ExecContext(ctx,
		"ALTER TABLE files ADD COLUMN has_thumbnail INTEGER NOT NULL DEFAULT 0",
	); err != nil {
		return fmt.Errorf("failed to add has_thumbnail column: %w", err)
	}
	logging.Info("Migration complete: has_thumbnail column added")
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch opens a transaction for a scanner insert batch. The write
// lock is held only while the transaction starts; EndBatch finishes it.
// The transaction deliberately uses the background context: a timeout
// context cancelled on return would kill the transaction under the
// caller.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	d.txStart = txStart
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back when the batch
// produced an error.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// UpsertFile writes one file record inside a batch transaction. The
// updated_at column always moves to 'now'; DeleteMissingFiles reads it as
// a "last seen by the scanner" watermark.
func (d *Database) UpsertFile(tx *sql.Tx, file *BlendFile) error {
	const query = `
	INSERT INTO files (name, path, parent_path, size, mod_time, version, compressed, has_thumbnail, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		name = excluded.name,
		parent_path = excluded.parent_path,
		size = excluded.size,
		mod_time = excluded.mod_time,
		version = excluded.version,
		compressed = excluded.compressed,
		has_thumbnail = excluded.has_thumbnail,
		updated_at = strftime('%s', 'now')
	`

	result, err := tx.ExecContext(context.Background(), query,
		file.Name, file.Path, file.ParentPath, file.Size, file.ModTime.Unix(),
		file.Version, file.Compressed, file.HasThumbnail,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("upsert_file").Observe(float64(rows))
	}
	return nil
}

// UpsertFiles writes a batch of file records in a single transaction.
func (d *Database) UpsertFiles(files []*BlendFile) error {
	if len(files) == 0 {
		return nil
	}
	done := observeQuery("batch_upsert")

	tx, err := d.BeginBatch()
	if err != nil {
		done(err)
		return err
	}

	for _, file := range files {
		if err = d.UpsertFile(tx, file); err != nil {
			err = fmt.Errorf("failed to upsert %s: %w", file.Path, err)
			break
		}
	}

	err = d.EndBatch(tx, err)
	done(err)
	return err
}

// DeleteMissingFiles removes records the scanner did not touch during the
// current run, identified by an updated_at older than the scan start.
func (d *Database) DeleteMissingFiles(tx *sql.Tx, cutoffTime time.Time) (int64, error) {
	result, err := tx.ExecContext(context.Background(),
		"DELETE FROM files WHERE updated_at < ?", cutoffTime.Unix(),
	)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_files").Observe(float64(rows))
	}
	return rows, err
}

// GetFileByPath retrieves a single file by its library-relative path.
func (d *Database) GetFileByPath(ctx context.Context, path string) (*BlendFile, error) {
	done := observeQuery("get_file_by_path")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var file BlendFile
	var modTime int64
	var version sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, path, parent_path, size, mod_time, version, compressed, has_thumbnail
		FROM files WHERE path = ?
	`, path).Scan(
		&file.ID, &file.Name, &file.Path, &file.ParentPath,
		&file.Size, &modTime, &version, &file.Compressed, &file.HasThumbnail,
	)
	done(err)
	if err != nil {
		return nil, err
	}

	file.ModTime = time.Unix(modTime, 0)
	file.Version = version.String
	return &file, nil
}

// RefreshStats recomputes the library statistics from the files and tags
// tables and replaces the cached copy, preserving the scan bookkeeping
// fields the scanner maintains.
func (d *Database) RefreshStats(ctx context.Context) (LibraryStats, error) {
	done := observeQuery("get_stats")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats LibraryStats
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(has_thumbnail), 0),
		       COALESCE(SUM(compressed), 0),
		       COALESCE(SUM(size), 0)
		FROM files
	`).Scan(&stats.TotalFiles, &stats.FilesWithThumbnail, &stats.CompressedFiles, &stats.TotalSize)
	if err != nil {
		done(err)
		return LibraryStats{}, err
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&stats.TotalTags)
	done(err)
	if err != nil {
		return LibraryStats{}, err
	}

	d.statsMu.Lock()
	stats.LastScanned = d.stats.LastScanned
	stats.ScanDuration = d.stats.ScanDuration
	d.stats = stats
	d.statsMu.Unlock()

	return stats, nil
}

// UpdateStats replaces the cached statistics.
func (d *Database) UpdateStats(stats LibraryStats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats = stats
}

// GetStats returns the cached library statistics.
func (d *Database) GetStats() LibraryStats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// RebuildFTS rebuilds the full-text search index from the files table.
func (d *Database) RebuildFTS() error {
	return d.maintenance("rebuild_fts",
		"INSERT INTO files_fts(files_fts) VALUES('rebuild')", 30*time.Second)
}

// Vacuum reclaims space after large deletions.
func (d *Database) Vacuum() error {
	return d.maintenance("vacuum", "VACUUM", 60*time.Second)
}

// maintenance runs an exclusive housekeeping statement with its own
// timeout, blocking other writers for the duration.
func (d *Database) maintenance(operation, stmt string, timeout time.Duration) error {
	done := observeQuery(operation)

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, stmt)
	done(err)
	return err
}

// observeQuery starts a query timer; the returned func records the result.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// UpdateDBMetrics publishes connection pool gauges.
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

// diagnoseDatabasePermissions logs the permission state of the database
// file, its directory and its WAL sidecars before the first open, so a
// misconfigured volume shows up as one clear warning instead of scattered
// write failures. Read-only sidecars, left behind by unclean container
// restarts, are chmodded back to writable when possible.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	probe := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(probe)
	logging.Debug("Database directory is writable")

	candidates := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for i, p := range candidates {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		if i == 0 {
			logging.Warn("Database file is read-only! Mode: %v", info.Mode())
			continue
		}
		logging.Warn("Sidecar file is read-only! Mode: %v - this will cause write failures", info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", p, chmodErr)
		} else {
			logging.Info("Fixed %s permissions", p)
		}
	}

	return nil
}
