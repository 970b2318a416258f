package db

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const pageColumns = `id, namespace_id, title, content_type, deleted, content_language,
	is_category_hidden, redirects_to_namespace_id, redirects_to_title,
	cached_html, cached_revision_id, cache_parse_duration_ms, cache_parse_date,
	cache_expiry_date, cache_size_before, cache_size_after`

// pageColumnsPrefixed qualifies every page column with a table alias.
func pageColumnsPrefixed(prefix string) string {
	cols := strings.Split(pageColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanPage(row interface{ Scan(...interface{}) error }) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.NamespaceID, &p.Title, &p.ContentType, &p.Deleted,
		&p.ContentLanguage, &p.IsCategoryHidden, &p.RedirectsToNamespaceID,
		&p.RedirectsToTitle, &p.CachedHTML, &p.CachedRevisionID,
		&p.CacheParseDurationMs, &p.CacheParseDate, &p.CacheExpiryDate,
		&p.CacheSizeBefore, &p.CacheSizeAfter)
	return p, err
}

// GetPage returns the page row for (namespace, title).
func (q *Queries) GetPage(ctx context.Context, namespaceID int, title string) (Page, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM page WHERE namespace_id = ? AND title = ?`,
		namespaceID, title)
	return scanPage(row)
}

// GetPageByID returns the page row with the given id.
func (q *Queries) GetPageByID(ctx context.Context, id int64) (Page, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM page WHERE id = ?`, id)
	return scanPage(row)
}

// CreatePageParams holds the insertable columns of a page row.
type CreatePageParams struct {
	NamespaceID      int
	Title            string
	ContentType      string
	ContentLanguage  string
	IsCategoryHidden sql.NullBool
}

// CreatePage inserts a new page and returns the stored row.
func (q *Queries) CreatePage(ctx context.Context, p CreatePageParams) (Page, error) {
	if p.ContentType == "" {
		p.ContentType = "wikipage"
	}
	if p.ContentLanguage == "" {
		p.ContentLanguage = "en"
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO page (namespace_id, title, content_type, content_language, is_category_hidden)
		VALUES (?, ?, ?, ?, ?)`,
		p.NamespaceID, p.Title, p.ContentType, p.ContentLanguage, p.IsCategoryHidden)
	if err != nil {
		return Page{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Page{}, err
	}
	return q.GetPageByID(ctx, id)
}

// SetPageDeleted flips the logical deletion flag.
func (q *Queries) SetPageDeleted(ctx context.Context, id int64, deleted bool) error {
	_, err := q.db.ExecContext(ctx, `UPDATE page SET deleted = ? WHERE id = ?`, deleted, id)
	return err
}

// RenamePage moves a page to a new (namespace, title).
func (q *Queries) RenamePage(ctx context.Context, id int64, namespaceID int, title string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE page SET namespace_id = ?, title = ? WHERE id = ?`, namespaceID, title, id)
	return err
}

// SetPageRedirect records or clears the page's redirect target.
func (q *Queries) SetPageRedirect(ctx context.Context, id int64, ns sql.NullInt64, title sql.NullString) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE page SET redirects_to_namespace_id = ?, redirects_to_title = ? WHERE id = ?`,
		ns, title, id)
	return err
}

// SetPageContentLanguage updates the page's content language.
func (q *Queries) SetPageContentLanguage(ctx context.Context, id int64, lang string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE page SET content_language = ? WHERE id = ?`, lang, id)
	return err
}

// SetPageContentType updates the page's content type.
func (q *Queries) SetPageContentType(ctx context.Context, id int64, contentType string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE page SET content_type = ? WHERE id = ?`, contentType, id)
	return err
}

// UpdatePageCacheParams holds the parse cache columns written after a
// successful parse.
type UpdatePageCacheParams struct {
	ID              int64
	CachedHTML      string
	RevisionID      int64
	ParseDurationMs int64
	ParseDate       time.Time
	ExpiryDate      time.Time
	SizeBefore      int64
	SizeAfter       int64
}

// UpdatePageCache stores the rendered HTML and its bookkeeping fields.
func (q *Queries) UpdatePageCache(ctx context.Context, p UpdatePageCacheParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE page SET cached_html = ?, cached_revision_id = ?,
			cache_parse_duration_ms = ?, cache_parse_date = ?, cache_expiry_date = ?,
			cache_size_before = ?, cache_size_after = ?
		WHERE id = ?`,
		p.CachedHTML, p.RevisionID, p.ParseDurationMs, p.ParseDate, p.ExpiryDate,
		p.SizeBefore, p.SizeAfter, p.ID)
	return err
}

// ClearPageCache nulls the parse cache columns so the next read re-parses.
func (q *Queries) ClearPageCache(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE page SET cached_html = NULL, cached_revision_id = NULL,
			cache_parse_duration_ms = NULL, cache_parse_date = NULL,
			cache_expiry_date = NULL, cache_size_before = NULL, cache_size_after = NULL
		WHERE id = ?`, id)
	return err
}

// ListExpiredCachePages returns non-deleted pages whose cache expiry has
// passed.
func (q *Queries) ListExpiredCachePages(ctx context.Context, now time.Time) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM page
		WHERE NOT deleted AND cache_expiry_date IS NOT NULL AND cache_expiry_date <= ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// ListPages returns all non-deleted pages ordered by namespace and title.
func (q *Queries) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM page WHERE NOT deleted ORDER BY namespace_id, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// ListSubpages returns non-deleted pages under the given title prefix in a
// namespace.
func (q *Queries) ListSubpages(ctx context.Context, namespaceID int, prefix string) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM page
		WHERE NOT deleted AND namespace_id = ? AND title LIKE ? ESCAPE '\'
		ORDER BY title`, namespaceID, escapeLike(prefix)+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// RandomPage returns one random non-deleted page in the given namespaces.
func (q *Queries) RandomPage(ctx context.Context, namespaceIDs []int) (Page, error) {
	query, args := inClause(`
		SELECT `+pageColumns+` FROM page
		WHERE NOT deleted AND redirects_to_title IS NULL AND namespace_id IN (%s)
		ORDER BY RANDOM() LIMIT 1`, namespaceIDs)
	row := q.db.QueryRowContext(ctx, query, args...)
	return scanPage(row)
}

// CountPages returns the number of non-deleted pages.
func (q *Queries) CountPages(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page WHERE NOT deleted`).Scan(&n)
	return n, err
}

// CountArticles returns the number of non-deleted, non-redirect pages in the
// given content namespaces.
func (q *Queries) CountArticles(ctx context.Context, namespaceIDs []int) (int64, error) {
	query, args := inClause(`
		SELECT COUNT(*) FROM page
		WHERE NOT deleted AND redirects_to_title IS NULL AND namespace_id IN (%s)`,
		namespaceIDs)
	var n int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CountPagesInNamespace returns the number of non-deleted pages in one
// namespace.
func (q *Queries) CountPagesInNamespace(ctx context.Context, namespaceID int) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page WHERE NOT deleted AND namespace_id = ?`, namespaceID).Scan(&n)
	return n, err
}

func collectPages(rows *sql.Rows) ([]Page, error) {
	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
