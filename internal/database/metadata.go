package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// The metadata table is a small key-value store for scanner bookkeeping
// that must survive restarts.

const lastScanKey = "last_scan"

// GetMetadata returns the value for key, or sql.ErrNoRows when unset.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	return value, err
}

// SetMetadata stores key=value, replacing any previous value.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// GetLastScan reports when the last full library scan completed. A zero
// time means no scan has finished yet.
func (d *Database) GetLastScan(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastScanKey)
	switch {
	case errors.Is(err, sql.ErrNoRows), err == nil && value == "":
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastScan records the completion time of a full library scan.
func (d *Database) SetLastScan(ctx context.Context, t time.Time) error {
	value := ""
	if !t.IsZero() {
		value = t.Format(time.RFC3339)
	}
	return d.SetMetadata(ctx, lastScanKey, value)
}
