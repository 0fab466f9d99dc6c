package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"blend-browser/internal/logging"
)

type SortField string
type SortOrder string

const (
	SortByName    SortField = "name"
	SortByDate    SortField = "date"
	SortBySize    SortField = "size"
	SortByVersion SortField = "version"
	SortAsc       SortOrder = "asc"
	SortDesc      SortOrder = "desc"
)

// ListOptions controls ListFiles. An empty ParentPath lists the whole
// library; HasThumbnail and Compressed are tri-state filters.
type ListOptions struct {
	ParentPath   string
	SortField    SortField
	SortOrder    SortOrder
	HasThumbnail *bool
	Compressed   *bool
	Page         int
	PageSize     int
}

type SearchOptions struct {
	Query    string
	Page     int
	PageSize int
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

// pageCount never reports fewer than one page so clients can render
// pagination for an empty result.
func pageCount(totalItems, pageSize int) int {
	pages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	if pages < 1 {
		return 1
	}
	return pages
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Error("failed to close rows: %v", err)
	}
}

func sortClause(field SortField, order SortOrder) string {
	column := "name COLLATE NOCASE"
	switch field {
	case SortByDate:
		column = "mod_time"
	case SortBySize:
		column = "size"
	case SortByVersion:
		column = "version"
	}

	dir := "ASC"
	if order == SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s", column, dir)
}

// ListFiles returns one page of library entries.
func (d *Database) ListFiles(ctx context.Context, opts ListOptions) (*FileListing, error) {
	done := observeQuery("list_files")
	logging.Debug("ListFiles called: parent=%q page=%d", opts.ParentPath, opts.Page)

	opts.Page, opts.PageSize = normalizePage(opts.Page, opts.PageSize)

	where := "1=1"
	args := []interface{}{}

	if opts.ParentPath != "" {
		where += " AND parent_path = ?"
		args = append(args, opts.ParentPath)
	}
	if opts.HasThumbnail != nil {
		where += " AND has_thumbnail = ?"
		args = append(args, *opts.HasThumbnail)
	}
	if opts.Compressed != nil {
		where += " AND compressed = ?"
		args = append(args, *opts.Compressed)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var totalItems int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE "+where, args...).Scan(&totalItems)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, path, parent_path, size, mod_time, version, compressed, has_thumbnail
		FROM files
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, where, sortClause(opts.SortField, opts.SortOrder))
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer closeRows(rows)

	items, err := scanFiles(rows)
	if err != nil {
		done(err)
		return nil, err
	}

	if err := d.attachTags(ctx, items); err != nil {
		logging.Warn("Failed to attach tags to listing: %v", err)
	}

	done(nil)
	return &FileListing{
		Path:       opts.ParentPath,
		Items:      items,
		TotalItems: totalItems,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: pageCount(totalItems, opts.PageSize),
	}, nil
}

// SearchFiles runs a trigram full-text search over names and paths.
func (d *Database) SearchFiles(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	done := observeQuery("search_files")

	query := strings.TrimSpace(opts.Query)
	if query == "" {
		done(nil)
		return &SearchResult{Items: []BlendFile{}, Page: 1, PageSize: opts.PageSize, TotalPages: 1}, nil
	}
	// Trigram tokenizer needs at least three characters to match.
	if len(query) < 3 {
		done(nil)
		return &SearchResult{Items: []BlendFile{}, Query: query, Page: 1, PageSize: opts.PageSize, TotalPages: 1}, nil
	}

	opts.Page, opts.PageSize = normalizePage(opts.Page, opts.PageSize)

	// Quote the query so FTS operators in file names are matched
	// literally instead of parsed.
	ftsQuery := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var totalItems int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files_fts WHERE files_fts MATCH ?",
		ftsQuery,
	).Scan(&totalItems)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("search count failed: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.path, f.parent_path, f.size, f.mod_time, f.version, f.compressed, f.has_thumbnail
		FROM files f
		INNER JOIN files_fts fts ON f.id = fts.rowid
		WHERE files_fts MATCH ?
		ORDER BY rank
		LIMIT ? OFFSET ?
	`, ftsQuery, opts.PageSize, (opts.Page-1)*opts.PageSize)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer closeRows(rows)

	items, err := scanFiles(rows)
	if err != nil {
		done(err)
		return nil, err
	}

	if err := d.attachTags(ctx, items); err != nil {
		logging.Warn("Failed to attach tags to search result: %v", err)
	}

	done(nil)
	return &SearchResult{
		Items:      items,
		Query:      query,
		TotalItems: totalItems,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: pageCount(totalItems, opts.PageSize),
	}, nil
}

func scanFiles(rows *sql.Rows) ([]BlendFile, error) {
	items := []BlendFile{}
	for rows.Next() {
		var file BlendFile
		var modTime int64
		var version sql.NullString

		if err := rows.Scan(
			&file.ID, &file.Name, &file.Path, &file.ParentPath,
			&file.Size, &modTime, &version, &file.Compressed, &file.HasThumbnail,
		); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}

		file.ModTime = time.Unix(modTime, 0)
		if version.Valid {
			file.Version = version.String
		}
		items = append(items, file)
	}
	return items, rows.Err()
}

// attachTags fills in the Tags slice for a page of files with one query.
// Caller must hold at least a read lock.
func (d *Database) attachTags(ctx context.Context, items []BlendFile) error {
	if len(items) == 0 {
		return nil
	}

	placeholders := make([]string, len(items))
	args := make([]interface{}, len(items))
	index := make(map[string]int, len(items))
	for i := range items {
		placeholders[i] = "?"
		args[i] = items[i].Path
		index[items[i].Path] = i
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT ft.file_path, t.name
		FROM file_tags ft
		INNER JOIN tags t ON t.id = ft.tag_id
		WHERE ft.file_path IN (%s)
		ORDER BY t.name COLLATE NOCASE
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return err
	}
	defer closeRows(rows)

	for rows.Next() {
		var path, tag string
		if err := rows.Scan(&path, &tag); err != nil {
			return err
		}
		if i, ok := index[path]; ok {
			items[i].Tags = append(items[i].Tags, tag)
		}
	}
	return rows.Err()
}
