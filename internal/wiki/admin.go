package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

// Delete soft-deletes a page. Revisions are retained.
func (s *Service) Delete(ctx context.Context, performer *models.User, ns *Namespace, title string, reason string) error {
	if !performer.HasPermission(PermWikiDelete) {
		return &MissingPermissionError{Perms: []string{PermWikiDelete}}
	}
	page, err := s.Get(ctx, ns, title)
	if err != nil {
		return err
	}
	if !page.Exists || page.Deleted {
		return ErrPageDoesNotExist
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	if err := q.SetPageDeleted(ctx, page.ID, true); err != nil {
		return err
	}
	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return err
	}
	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageDeletion,
		Date:        time.Now(),
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      reason,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// RenameParams carries the options of a page rename.
type RenameParams struct {
	Reason        string
	LeaveRedirect bool
}

// Rename moves a page to (targetNS, targetTitle), optionally leaving a
// redirect behind at the old location.
func (s *Service) Rename(ctx context.Context, performer *models.User, ns *Namespace, title string, targetNS *Namespace, targetTitle string, p RenameParams) error {
	if !performer.HasPermission(PermWikiRename) {
		return &MissingPermissionError{Perms: []string{PermWikiRename}}
	}
	if !targetNS.IsEditable {
		return ErrEditSpecialPage
	}
	page, err := s.Get(ctx, ns, title)
	if err != nil {
		return err
	}
	if !page.Exists || page.Deleted {
		return ErrPageDoesNotExist
	}
	if exists, err := s.PageExists(ctx, targetNS.ID, targetTitle); err != nil {
		return err
	} else if exists {
		return ErrTitleAlreadyExists
	}

	now := time.Now()
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	if err := q.RenamePage(ctx, page.ID, targetNS.ID, targetTitle); err != nil {
		return err
	}
	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return err
	}

	if p.LeaveRedirect {
		redirect, err := q.CreatePage(ctx, db.CreatePageParams{
			NamespaceID:     ns.ID,
			Title:           title,
			ContentLanguage: page.ContentLanguage,
		})
		if err != nil {
			return err
		}
		content := fmt.Sprintf("@REDIRECT[[%s]]", targetNS.FullTitle(targetTitle))
		if _, err := q.CreateRevision(ctx, db.CreateRevisionParams{
			PageID:       redirect.ID,
			AuthorID:     performer.ID(),
			Date:         now,
			Comment:      p.Reason,
			Content:      content,
			Bot:          true,
			PageCreation: true,
		}); err != nil {
			return err
		}
		if err := q.SetPageRedirect(ctx, redirect.ID,
			db.NullInt64(int64(targetNS.ID)), db.NullString(targetTitle)); err != nil {
			return err
		}
	}

	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageRename,
		Date:        now,
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      p.Reason,
		Details:     targetNS.FullTitle(targetTitle),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ProtectParams carries the options of a page protection.
type ProtectParams struct {
	Level        string
	EndDate      *time.Time
	ProtectTalks bool
	Reason       string
}

// Protect sets or replaces the protection on (ns, title). An empty level
// removes the protection. Non-existent pages can be protected to prevent
// creation.
func (s *Service) Protect(ctx context.Context, performer *models.User, ns *Namespace, title string, p ProtectParams) error {
	if !performer.HasPermission(PermWikiProtect) {
		return &MissingPermissionError{Perms: []string{PermWikiProtect}}
	}
	if ns.ID == NSSpecial {
		return ErrEditSpecialPage
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	if p.Level == "" {
		if err := q.DeleteProtection(ctx, ns.ID, title); err != nil {
			return err
		}
	} else {
		if err := q.UpsertProtection(ctx, db.PageProtection{
			NamespaceID:     ns.ID,
			Title:           title,
			EndDate:         db.NullTimePtr(p.EndDate),
			ProtectionLevel: p.Level,
			ProtectTalks:    p.ProtectTalks,
			Reason:          p.Reason,
		}); err != nil {
			return err
		}
	}

	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageProtection,
		Date:        time.Now(),
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      p.Reason,
		Details:     p.Level,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// MaskAction selects which visibility flags a mask operation sets.
type MaskAction string

const (
	MaskFully           MaskAction = "mask_fully"
	MaskCommentsOnly    MaskAction = "mask_comments_only"
	UnmaskAll           MaskAction = "unmask_all"
	UnmaskAllButComment MaskAction = "unmask_all_but_comments"
)

// flags returns the (hidden, commentHidden) pair the action applies.
func (a MaskAction) flags() (bool, bool, error) {
	switch a {
	case MaskFully:
		return true, true, nil
	case MaskCommentsOnly:
		return false, true, nil
	case UnmaskAll:
		return false, false, nil
	case UnmaskAllButComment:
		return false, true, nil
	}
	return false, false, fmt.Errorf("unknown mask action %q", a)
}

// MaskRevisions applies a mask action to the given revisions of (ns, title).
// At least one fully visible revision must remain on the page.
func (s *Service) MaskRevisions(ctx context.Context, performer *models.User, ns *Namespace, title string, revisionIDs []int64, action MaskAction, reason string) error {
	if !performer.HasPermission(PermWikiMask) {
		return &MissingPermissionError{Perms: []string{PermWikiMask}}
	}
	hidden, commentHidden, err := action.flags()
	if err != nil {
		return err
	}

	page, err := s.Get(ctx, ns, title)
	if err != nil {
		return err
	}
	if !page.Exists {
		return ErrPageDoesNotExist
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	revs, err := q.ListRevisionsByIDs(ctx, revisionIDs)
	if err != nil {
		return err
	}
	if len(revs) != len(revisionIDs) {
		return ErrRevisionDoesNotExist
	}
	for _, r := range revs {
		if r.PageID != page.ID {
			return ErrRevisionDoesNotExist
		}
	}

	if hidden {
		visible, err := q.CountVisibleRevisions(ctx, page.ID)
		if err != nil {
			return err
		}
		var toHide int64
		for _, r := range revs {
			if !r.Hidden {
				toHide++
			}
		}
		if visible-toHide < 1 {
			return ErrCannotMaskLastRevision
		}
	}

	now := time.Now()
	for _, r := range revs {
		if err := q.SetRevisionMask(ctx, r.ID, hidden, commentHidden); err != nil {
			return err
		}
	}
	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return err
	}
	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageRevisionMask,
		Date:        now,
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      reason,
		Details:     string(action),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetContentLanguage changes the content language of an existing page.
func (s *Service) SetContentLanguage(ctx context.Context, performer *models.User, ns *Namespace, title string, lang, reason string) error {
	if !performer.HasPermission(PermWikiRename) {
		return &MissingPermissionError{Perms: []string{PermWikiRename}}
	}
	page, err := s.Get(ctx, ns, title)
	if err != nil {
		return err
	}
	if !page.Exists || page.Deleted {
		return ErrPageDoesNotExist
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	if err := q.SetPageContentLanguage(ctx, page.ID, lang); err != nil {
		return err
	}
	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return err
	}
	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageContentLanguage,
		Date:        time.Now(),
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      reason,
		Details:     lang,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetContentType changes the content type of an existing page.
func (s *Service) SetContentType(ctx context.Context, performer *models.User, ns *Namespace, title string, contentType, reason string) error {
	if !performer.HasPermission(PermWikiRename) {
		return &MissingPermissionError{Perms: []string{PermWikiRename}}
	}
	switch contentType {
	case ContentTypeWikipage, ContentTypeModule, ContentTypeCSS, ContentTypeJS, ContentTypeJSON:
	default:
		return fmt.Errorf("unknown content type %q", contentType)
	}
	page, err := s.Get(ctx, ns, title)
	if err != nil {
		return err
	}
	if !page.Exists || page.Deleted {
		return ErrPageDoesNotExist
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	q := s.db.WithTx(tx)

	if err := q.SetPageContentType(ctx, page.ID, contentType); err != nil {
		return err
	}
	if err := q.ClearPageCache(ctx, page.ID); err != nil {
		return err
	}
	if err := q.InsertLog(ctx, db.Log{
		Kind:        db.LogPageContentType,
		Date:        time.Now(),
		PerformerID: db.NullInt64(performer.ID()),
		NamespaceID: db.NullInt64(int64(ns.ID)),
		Title:       db.NullString(title),
		Reason:      reason,
		Details:     contentType,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// BlockUser places a block on an account.
func (s *Service) BlockUser(ctx context.Context, performer *models.User, target *db.User, endDate *time.Time, allowOwnTalk, allowOwnSettings bool, reason string) error {
	if !performer.HasPermission(PermBlockUsers) {
		return &MissingPermissionError{Perms: []string{PermBlockUsers}}
	}
	if err := s.db.Queries.CreateUserBlock(ctx, db.UserBlock{
		UserID:                     target.ID,
		EndDate:                    db.NullTimePtr(endDate),
		AllowMessagesOnOwnUserPage: allowOwnTalk,
		AllowEditingOwnSettings:    allowOwnSettings,
		Reason:                     reason,
	}); err != nil {
		return err
	}
	return s.db.Queries.InsertLog(ctx, db.Log{
		Kind:         db.LogUserBlock,
		Date:         time.Now(),
		PerformerID:  db.NullInt64(performer.ID()),
		TargetUserID: db.NullInt64(target.ID),
		Reason:       reason,
	})
}

// BlockIP places a block on an IP address.
func (s *Service) BlockIP(ctx context.Context, performer *models.User, ip string, endDate *time.Time, allowAccountCreation bool, reason string) error {
	if !performer.HasPermission(PermBlockUsers) {
		return &MissingPermissionError{Perms: []string{PermBlockUsers}}
	}
	if err := s.db.Queries.CreateIPBlock(ctx, db.IPBlock{
		IPAddress:            ip,
		EndDate:              db.NullTimePtr(endDate),
		AllowAccountCreation: allowAccountCreation,
		Reason:               reason,
	}); err != nil {
		return err
	}
	return s.db.Queries.InsertLog(ctx, db.Log{
		Kind:        db.LogIPBlock,
		Date:        time.Now(),
		PerformerID: db.NullInt64(performer.ID()),
		Reason:      reason,
		Details:     ip,
	})
}
