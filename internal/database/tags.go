package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blend-browser/internal/logging"
)

// Tags attach free-form labels ("rig", "wip", "asset-lib") to library
// paths so scenes can be grouped across directory boundaries. Names are
// case-insensitive; "Rigging" and "rigging" are the same tag.

var errEmptyTagName = errors.New("tag name cannot be empty")

func normalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errEmptyTagName
	}
	return name, nil
}

// querier runs against either the connection pool or an open transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// resolveTagID finds a tag by name, optionally creating it. The caller
// must hold the write lock when create is true.
func resolveTagID(ctx context.Context, q querier, name string, create bool) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = ? COLLATE NOCASE`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || !create {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	return res.LastInsertId()
}

func scanTag(row interface{ Scan(...interface{}) error }) (Tag, error) {
	var (
		tag       Tag
		createdAt int64
		color     sql.NullString
	)
	if err := row.Scan(&tag.ID, &tag.Name, &color, &createdAt); err != nil {
		return Tag{}, err
	}
	tag.CreatedAt = time.Unix(createdAt, 0)
	tag.Color = color.String
	return tag, nil
}

// GetOrCreateTag returns the tag with the given name, creating it on
// first use.
func (d *Database) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := resolveTagID(ctx, d.db, name, true)
	if err != nil {
		return nil, err
	}

	tag, err := scanTag(d.db.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM tags WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// AddTagToFile labels a file, creating the tag on first use. Adding a
// label twice is a no-op.
func (d *Database) AddTagToFile(ctx context.Context, filePath, tagName string) error {
	done := observeQuery("add_tag")

	tagName, err := normalizeTagName(tagName)
	if err != nil {
		done(err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tagID, err := resolveTagID(ctx, d.db, tagName, true)
	if err != nil {
		done(err)
		return err
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO file_tags (file_path, tag_id) VALUES (?, ?)`,
		filePath, tagID)
	done(err)
	return err
}

// RemoveTagFromFile detaches a label from a file. Unknown tags and
// unlabelled files are not errors.
func (d *Database) RemoveTagFromFile(ctx context.Context, filePath, tagName string) error {
	done := observeQuery("remove_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		DELETE FROM file_tags
		WHERE file_path = ?
		  AND tag_id IN (SELECT id FROM tags WHERE name = ? COLLATE NOCASE)`,
		filePath, tagName)
	done(err)
	return err
}

// GetFileTags returns a file's labels sorted case-insensitively.
func (d *Database) GetFileTags(ctx context.Context, filePath string) ([]string, error) {
	done := observeQuery("get_file_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tags, err := d.fileTagNames(ctx, filePath)
	done(err)
	return tags, err
}

// fileTagNames requires the caller to hold at least a read lock.
func (d *Database) fileTagNames(ctx context.Context, filePath string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_path = ?
		ORDER BY t.name COLLATE NOCASE`, filePath)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetFileTags replaces a file's labels atomically.
func (d *Database) SetFileTags(ctx context.Context, filePath string, tagNames []string) error {
	done := observeQuery("set_file_tags")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}

	err = replaceFileTags(ctx, tx, filePath, tagNames)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("rollback failed: %v", rbErr)
		}
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

func replaceFileTags(ctx context.Context, tx *sql.Tx, filePath string, tagNames []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_tags WHERE file_path = ?`, filePath); err != nil {
		return err
	}

	for _, raw := range tagNames {
		name, err := normalizeTagName(raw)
		if err != nil {
			continue // blank entries in the list are skipped, not fatal
		}

		tagID, err := resolveTagID(ctx, tx, name, true)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO file_tags (file_path, tag_id) VALUES (?, ?)`,
			filePath, tagID); err != nil {
			return err
		}
	}
	return nil
}

// GetAllTags returns every tag with the number of files carrying it.
func (d *Database) GetAllTags(ctx context.Context) ([]Tag, error) {
	done := observeQuery("get_all_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at, COUNT(ft.id)
		FROM tags t
		LEFT JOIN file_tags ft ON ft.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name COLLATE NOCASE`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer closeRows(rows)

	var tags []Tag
	for rows.Next() {
		var (
			tag       Tag
			createdAt int64
			color     sql.NullString
		)
		if err := rows.Scan(&tag.ID, &tag.Name, &color, &createdAt, &tag.ItemCount); err != nil {
			done(err)
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		tag.Color = color.String
		tags = append(tags, tag)
	}

	err = rows.Err()
	done(err)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// GetFilesByTag returns a page of files carrying a label, tags included.
func (d *Database) GetFilesByTag(ctx context.Context, tagName string, page, pageSize int) (*SearchResult, error) {
	done := observeQuery("get_files_by_tag")

	page, pageSize = normalizePage(page, pageSize)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var totalItems int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT ft.file_path)
		FROM file_tags ft
		JOIN tags t ON t.id = ft.tag_id
		WHERE t.name = ? COLLATE NOCASE`, tagName).Scan(&totalItems)
	if err != nil {
		done(err)
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.path, f.parent_path, f.size, f.mod_time,
		       f.version, f.compressed, f.has_thumbnail
		FROM files f
		JOIN file_tags ft ON ft.file_path = f.path
		JOIN tags t ON t.id = ft.tag_id
		WHERE t.name = ? COLLATE NOCASE
		ORDER BY f.name COLLATE NOCASE
		LIMIT ? OFFSET ?`,
		tagName, pageSize, (page-1)*pageSize)
	if err != nil {
		done(err)
		return nil, err
	}
	defer closeRows(rows)

	items, err := scanFiles(rows)
	if err != nil {
		done(err)
		return nil, err
	}

	for i := range items {
		// Lock is already held; go through the unlocked path.
		items[i].Tags, _ = d.fileTagNames(ctx, items[i].Path)
	}

	done(nil)
	return &SearchResult{
		Items:      items,
		Query:      "tag:" + tagName,
		TotalItems: totalItems,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pageCount(totalItems, pageSize),
	}, nil
}

// DeleteTag removes a tag everywhere; file_tags rows go with it via the
// foreign-key cascade.
func (d *Database) DeleteTag(ctx context.Context, tagName string) error {
	done := observeQuery("delete_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		`DELETE FROM tags WHERE name = ? COLLATE NOCASE`, tagName)
	done(err)
	return err
}

// RenameTag changes a tag's name, keeping its file associations.
func (d *Database) RenameTag(ctx context.Context, oldName, newName string) error {
	done := observeQuery("rename_tag")

	newName, err := normalizeTagName(newName)
	if err != nil {
		done(err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`UPDATE tags SET name = ? WHERE name = ? COLLATE NOCASE`,
		newName, oldName)
	done(err)
	return err
}
