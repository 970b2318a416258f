package wiki

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sa/ottmwiki/internal/db"
)

// LatestRevision returns the newest revision of the page.
func (s *Service) LatestRevision(ctx context.Context, page *Page) (db.Revision, error) {
	if !page.Exists {
		return db.Revision{}, ErrPageDoesNotExist
	}
	rev, err := s.db.Queries.LatestRevision(ctx, page.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Revision{}, ErrNoRevisions
	}
	return rev, err
}

// EarliestRevision returns the oldest revision of the page.
func (s *Service) EarliestRevision(ctx context.Context, page *Page) (db.Revision, error) {
	if !page.Exists {
		return db.Revision{}, ErrPageDoesNotExist
	}
	rev, err := s.db.Queries.EarliestRevision(ctx, page.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Revision{}, ErrNoRevisions
	}
	return rev, err
}

// RevisionOf returns the revision with the given id, verifying it belongs to
// the page.
func (s *Service) RevisionOf(ctx context.Context, page *Page, revID int64) (db.Revision, error) {
	if !page.Exists {
		return db.Revision{}, ErrPageDoesNotExist
	}
	rev, err := s.db.Queries.GetRevision(ctx, revID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Revision{}, ErrRevisionDoesNotExist
	}
	if err != nil {
		return db.Revision{}, err
	}
	if rev.PageID != page.ID {
		return db.Revision{}, ErrRevisionDoesNotExist
	}
	return rev, nil
}

// NextRevision returns the revision following rev in page order. With
// skipHidden, hidden revisions are stepped over.
func (s *Service) NextRevision(ctx context.Context, rev *db.Revision, skipHidden bool) (db.Revision, error) {
	next, err := s.db.Queries.NextRevision(ctx, rev.PageID, rev.Date, skipHidden)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Revision{}, ErrRevisionDoesNotExist
	}
	return next, err
}

// PreviousRevision returns the revision preceding rev in page order. With
// skipHidden, hidden revisions are stepped over.
func (s *Service) PreviousRevision(ctx context.Context, rev *db.Revision, skipHidden bool) (db.Revision, error) {
	prev, err := s.db.Queries.PreviousRevision(ctx, rev.PageID, rev.Date, skipHidden)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Revision{}, ErrRevisionDoesNotExist
	}
	return prev, err
}

// History returns a window of the page's revisions, newest first.
func (s *Service) History(ctx context.Context, page *Page, limit, offset int) ([]db.Revision, error) {
	if !page.Exists {
		return nil, ErrPageDoesNotExist
	}
	return s.db.Queries.ListRevisions(ctx, page.ID, limit, offset)
}
