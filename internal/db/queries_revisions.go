package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const revisionColumns = `id, page_id, author_id, date, comment, hidden, comment_hidden,
	minor, bot, tags, content, page_creation`

func scanRevision(row interface{ Scan(...interface{}) error }) (Revision, error) {
	var r Revision
	err := row.Scan(&r.ID, &r.PageID, &r.AuthorID, &r.Date, &r.Comment, &r.Hidden,
		&r.CommentHidden, &r.Minor, &r.Bot, &r.Tags, &r.Content, &r.PageCreation)
	return r, err
}

// CreateRevisionParams holds the insertable columns of a revision row.
type CreateRevisionParams struct {
	PageID       int64
	AuthorID     int64
	Date         time.Time
	Comment      string
	Minor        bool
	Bot          bool
	Tags         string
	Content      string
	PageCreation bool
}

// CreateRevision appends a revision and returns the stored row.
func (q *Queries) CreateRevision(ctx context.Context, p CreateRevisionParams) (Revision, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO revision (page_id, author_id, date, comment, minor, bot, tags,
			content, page_creation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PageID, p.AuthorID, p.Date, p.Comment, p.Minor, p.Bot, p.Tags,
		p.Content, p.PageCreation)
	if err != nil {
		return Revision{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Revision{}, err
	}
	return q.GetRevision(ctx, id)
}

// GetRevision returns the revision with the given id.
func (q *Queries) GetRevision(ctx context.Context, id int64) (Revision, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revision WHERE id = ?`, id)
	return scanRevision(row)
}

// LatestRevision returns the most recent revision of a page.
func (q *Queries) LatestRevision(ctx context.Context, pageID int64) (Revision, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+` FROM revision
		WHERE page_id = ? ORDER BY date DESC LIMIT 1`, pageID)
	return scanRevision(row)
}

// EarliestRevision returns the first revision of a page.
func (q *Queries) EarliestRevision(ctx context.Context, pageID int64) (Revision, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+` FROM revision
		WHERE page_id = ? ORDER BY date ASC LIMIT 1`, pageID)
	return scanRevision(row)
}

// NextRevision returns the revision immediately after the given date,
// optionally skipping hidden revisions.
func (q *Queries) NextRevision(ctx context.Context, pageID int64, after time.Time, skipHidden bool) (Revision, error) {
	query := `SELECT ` + revisionColumns + ` FROM revision WHERE page_id = ? AND date > ?`
	if skipHidden {
		query += ` AND NOT hidden`
	}
	query += ` ORDER BY date ASC LIMIT 1`
	row := q.db.QueryRowContext(ctx, query, pageID, after)
	return scanRevision(row)
}

// PreviousRevision returns the revision immediately before the given date,
// optionally skipping hidden revisions.
func (q *Queries) PreviousRevision(ctx context.Context, pageID int64, before time.Time, skipHidden bool) (Revision, error) {
	query := `SELECT ` + revisionColumns + ` FROM revision WHERE page_id = ? AND date < ?`
	if skipHidden {
		query += ` AND NOT hidden`
	}
	query += ` ORDER BY date DESC LIMIT 1`
	row := q.db.QueryRowContext(ctx, query, pageID, before)
	return scanRevision(row)
}

// ListRevisions returns a page's revisions newest first.
func (q *Queries) ListRevisions(ctx context.Context, pageID int64, limit, offset int) ([]Revision, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+revisionColumns+` FROM revision
		WHERE page_id = ? ORDER BY date DESC LIMIT ? OFFSET ?`, pageID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRevisions(rows)
}

// ListRevisionsByIDs returns the revisions with the given ids.
func (q *Queries) ListRevisionsByIDs(ctx context.Context, ids []int64) ([]Revision, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM revision WHERE id IN (%s)`, revisionColumns, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRevisions(rows)
}

// ListContributions returns the revisions authored by a user, newest first.
func (q *Queries) ListContributions(ctx context.Context, authorID int64, limit, offset int) ([]Revision, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+revisionColumns+` FROM revision
		WHERE author_id = ? ORDER BY date DESC LIMIT ? OFFSET ?`, authorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRevisions(rows)
}

// ListRecentRevisions returns the newest revisions across all pages.
func (q *Queries) ListRecentRevisions(ctx context.Context, limit, offset int) ([]Revision, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+revisionColumns+` FROM revision
		ORDER BY date DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRevisions(rows)
}

// SetRevisionMask updates the hidden flags of one revision.
func (q *Queries) SetRevisionMask(ctx context.Context, id int64, hidden, commentHidden bool) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE revision SET hidden = ?, comment_hidden = ? WHERE id = ?`,
		hidden, commentHidden, id)
	return err
}

// CountRevisions returns the number of revisions of a page.
func (q *Queries) CountRevisions(ctx context.Context, pageID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revision WHERE page_id = ?`, pageID).Scan(&n)
	return n, err
}

// CountVisibleRevisions returns the number of non-hidden revisions of a page.
func (q *Queries) CountVisibleRevisions(ctx context.Context, pageID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revision WHERE page_id = ? AND NOT hidden`, pageID).Scan(&n)
	return n, err
}

// CountEdits returns the number of visible revisions across all pages.
func (q *Queries) CountEdits(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revision WHERE NOT hidden`).Scan(&n)
	return n, err
}

func collectRevisions(rows *sql.Rows) ([]Revision, error) {
	var revs []Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}
