package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

// EditParams carries the optional fields of an edit.
type EditParams struct {
	Comment        string
	Minor          bool
	Bot            bool
	Tags           string
	Follow         bool
	HiddenCategory *bool
	// BaseRevisionID is the latest revision id the caller observed; zero when
	// the caller saw no page. Edits race-checked against it.
	BaseRevisionID int64
}

// Edit transactionally appends a revision to (ns, title), creating the page
// on its first revision, refreshing derived indexes, updating the author's
// follow status and invalidating the parse cache.
func (s *Service) Edit(ctx context.Context, author *models.User, ns *Namespace, title string, content string, p EditParams) (db.Revision, error) {
	now := time.Now()

	if err := s.CanEditPage(ctx, author, ns, title, now); err != nil {
		return db.Revision{}, err
	}

	if max := s.cfg.RevisionCommentMaxLength; len(p.Comment) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(p.Comment[cut]) {
			cut--
		}
		p.Comment = p.Comment[:cut]
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return db.Revision{}, err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	// Optimistic lock: the latest revision inside the transaction must match
	// the snapshot the caller observed.
	page, err := q.GetPage(ctx, ns.ID, title)
	pageExists := true
	if errors.Is(err, sql.ErrNoRows) {
		pageExists = false
	} else if err != nil {
		return db.Revision{}, err
	}

	var latestID int64
	if pageExists {
		latest, err := q.LatestRevision(ctx, page.ID)
		if err == nil {
			latestID = latest.ID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return db.Revision{}, err
		}
	}
	if latestID != p.BaseRevisionID {
		return db.Revision{}, ErrConcurrentEdit
	}

	authorID, err := s.materializeAuthor(ctx, q, author, now)
	if err != nil {
		return db.Revision{}, err
	}

	if !pageExists {
		createParams := db.CreatePageParams{
			NamespaceID:     ns.ID,
			Title:           title,
			ContentLanguage: s.cfg.SiteLang,
		}
		if ns.ID == NSCategory {
			hidden := false
			if p.HiddenCategory != nil {
				hidden = *p.HiddenCategory
			}
			createParams.IsCategoryHidden = db.NullBool(hidden)
		}
		page, err = q.CreatePage(ctx, createParams)
		if err != nil {
			return db.Revision{}, err
		}
		if err := q.InsertLog(ctx, db.Log{
			Kind:        db.LogPageCreation,
			Date:        now,
			PerformerID: db.NullInt64(authorID),
			NamespaceID: db.NullInt64(int64(ns.ID)),
			Title:       db.NullString(title),
		}); err != nil {
			return db.Revision{}, err
		}
	} else if page.Deleted {
		// Editing a logically deleted page re-creates it.
		if err := q.SetPageDeleted(ctx, page.ID, false); err != nil {
			return db.Revision{}, err
		}
		page.Deleted = false
		if err := q.InsertLog(ctx, db.Log{
			Kind:        db.LogPageCreation,
			Date:        now,
			PerformerID: db.NullInt64(authorID),
			NamespaceID: db.NullInt64(int64(ns.ID)),
			Title:       db.NullString(title),
			Details:     "restored",
		}); err != nil {
			return db.Revision{}, err
		}
	}
	if pageExists && ns.ID == NSCategory && p.HiddenCategory != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE page SET is_category_hidden = ? WHERE id = ?`,
			*p.HiddenCategory, page.ID); err != nil {
			return db.Revision{}, err
		}
	}

	rev, err := q.CreateRevision(ctx, db.CreateRevisionParams{
		PageID:       page.ID,
		AuthorID:     authorID,
		Date:         now,
		Comment:      p.Comment,
		Minor:        p.Minor,
		Bot:          p.Bot,
		Tags:         p.Tags,
		Content:      content,
		PageCreation: latestID == 0,
	})
	if err != nil {
		return db.Revision{}, fmt.Errorf("append revision: %w", err)
	}

	if err := s.refreshDerivedIndexes(ctx, q, page.ID, content); err != nil {
		return db.Revision{}, err
	}

	if author.IsAuthenticated() {
		if p.Follow {
			err = q.UpsertFollow(ctx, db.PageFollowStatus{
				UserID:      authorID,
				NamespaceID: ns.ID,
				Title:       title,
			})
		} else {
			err = q.DeleteFollow(ctx, authorID, ns.ID, title)
		}
		if err != nil {
			return db.Revision{}, err
		}
	}

	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return db.Revision{}, err
	}

	if err := tx.Commit(); err != nil {
		return db.Revision{}, err
	}
	return rev, nil
}

// materializeAuthor resolves the acting principal to a user id, creating an
// IP-keyed anonymous account on first edit.
func (s *Service) materializeAuthor(ctx context.Context, q *db.Queries, author *models.User, now time.Time) (int64, error) {
	if author.ID() != 0 {
		return author.ID(), nil
	}
	ip := author.IPAddress()
	if ip == "" {
		return 0, fmt.Errorf("anonymous author has no IP address")
	}
	existing, err := q.GetAnonymousUserByIP(ctx, ip)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	created, err := q.CreateUser(ctx, db.CreateUserParams{
		Name:        ip,
		IPAddress:   db.NullString(ip),
		IsAnonymous: true,
		CreatedAt:   now,
	})
	if err != nil {
		return 0, err
	}
	if err := q.InsertLog(ctx, db.Log{
		Kind:         db.LogUserCreation,
		Date:         now,
		TargetUserID: db.NullInt64(created.ID),
	}); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// Follow adds or removes a follow status for the page. It is a no-op for
// anonymous principals and idempotent in both directions. The returned bool
// reports whether the page is followed afterwards.
func (s *Service) Follow(ctx context.Context, u *models.User, ns *Namespace, title string, follow bool) (bool, error) {
	if ns.ID == NSSpecial {
		return false, ErrFollowSpecialPage
	}
	if !u.IsAuthenticated() {
		return false, nil
	}
	if follow {
		err := s.db.Queries.UpsertFollow(ctx, db.PageFollowStatus{
			UserID:      u.ID(),
			NamespaceID: ns.ID,
			Title:       title,
		})
		return err == nil, err
	}
	return false, s.db.Queries.DeleteFollow(ctx, u.ID(), ns.ID, title)
}

// IsFollowing reports whether the principal follows the page.
func (s *Service) IsFollowing(ctx context.Context, u *models.User, ns *Namespace, title string) (bool, error) {
	if !u.IsAuthenticated() {
		return false, nil
	}
	_, err := s.db.Queries.GetFollow(ctx, u.ID(), ns.ID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
