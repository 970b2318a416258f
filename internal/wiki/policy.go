package wiki

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
)

// CanEditPage evaluates whether the principal may edit (ns, title). A nil
// return means the edit is allowed; otherwise the returned error names the
// first failing gate.
func (s *Service) CanEditPage(ctx context.Context, u *models.User, ns *Namespace, title string, now time.Time) error {
	// Namespace edit floor.
	if !ns.IsEditable {
		return ErrEditSpecialPage
	}
	var missing []string
	for _, perm := range append(ns.PermsRequired, PermWikiEdit) {
		ok, err := s.hasPermission(ctx, u, perm)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		return &MissingPermissionError{Perms: missing}
	}

	if err := s.checkBlocks(ctx, u, now); err != nil {
		return err
	}

	if err := s.checkProtection(ctx, u, ns, title, now, false); err != nil {
		return err
	}

	// User namespace: only the owner or holders of wiki_edit_user_pages may
	// edit pages under someone else's base name.
	if ns.ID == NSUser {
		base := BaseName(ns, title)
		if base != u.Username() && !u.HasPermission(PermWikiEditUserPages) {
			return &MissingPermissionError{Perms: []string{PermWikiEditUserPages}}
		}
	}

	return nil
}

// CanPostMessages evaluates whether the principal may post on the talk
// threads of (ns, title). Blocks are relaxed on the principal's own user
// page when the block permits it; protections apply only with protect_talks.
func (s *Service) CanPostMessages(ctx context.Context, u *models.User, ns *Namespace, title string, now time.Time) error {
	if !ns.IsEditable {
		return ErrEditSpecialPage
	}

	ownUserPage := ns.ID == NSUser && BaseName(ns, title) == u.Username()

	if err := s.checkBlocks(ctx, u, now); err != nil {
		if !ownUserPage {
			return err
		}
		allowed, berr := s.blockAllowsOwnTalk(ctx, u, now)
		if berr != nil {
			return berr
		}
		if !allowed {
			return err
		}
	}

	if err := s.checkProtection(ctx, u, ns, title, now, true); err != nil {
		return err
	}

	return nil
}

// CanReadRevision reports whether the principal may see a revision's
// content. Reading is only forbidden for hidden revisions when the principal
// lacks wiki_mask.
func (s *Service) CanReadRevision(u *models.User, rev *db.Revision) bool {
	if !rev.Hidden {
		return true
	}
	return u.HasPermission(PermWikiMask)
}

// CanReadComment reports whether the principal may see a revision's comment.
func (s *Service) CanReadComment(u *models.User, rev *db.Revision) bool {
	if !rev.CommentHidden {
		return true
	}
	return u.HasPermission(PermWikiMask)
}

// checkBlocks returns ErrBlocked when an active user or IP block applies.
func (s *Service) checkBlocks(ctx context.Context, u *models.User, now time.Time) error {
	if u.IsAuthenticated() {
		_, err := s.db.Queries.GetActiveUserBlock(ctx, u.ID(), now)
		if err == nil {
			return ErrBlocked
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return nil
	}

	ip := u.IPAddress()
	if ip == "" {
		return nil
	}
	_, err := s.db.Queries.GetActiveIPBlock(ctx, ip, now)
	if err == nil {
		return ErrBlocked
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	// A materialized anonymous account may also carry a user block.
	if u.ID() != 0 {
		_, err = s.db.Queries.GetActiveUserBlock(ctx, u.ID(), now)
		if err == nil {
			return ErrBlocked
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

// blockAllowsOwnTalk reports whether the principal's active block permits
// posting on their own user page.
func (s *Service) blockAllowsOwnTalk(ctx context.Context, u *models.User, now time.Time) (bool, error) {
	if u.ID() == 0 {
		return false, nil
	}
	b, err := s.db.Queries.GetActiveUserBlock(ctx, u.ID(), now)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return b.AllowMessagesOnOwnUserPage, nil
}

// checkProtection returns ErrProtected when an active protection excludes
// the principal. With talksOnly, only protections with protect_talks apply.
func (s *Service) checkProtection(ctx context.Context, u *models.User, ns *Namespace, title string, now time.Time, talksOnly bool) error {
	prot, err := s.db.Queries.GetProtection(ctx, ns.ID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if !prot.IsActive(now) {
		return nil
	}
	if talksOnly && !prot.ProtectTalks {
		return nil
	}
	if prot.ProtectionLevel == GroupAll || u.InGroup(prot.ProtectionLevel) {
		return nil
	}
	return ErrProtected
}

// hasPermission reports whether the principal carries the permission, either
// through its own groups or through the implicit "all" group.
func (s *Service) hasPermission(ctx context.Context, u *models.User, perm string) (bool, error) {
	if u.HasPermission(perm) {
		return true, nil
	}
	g, err := s.db.Queries.GetGroup(ctx, GroupAll)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, p := range g.PermissionList() {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// ActiveProtection returns the active protection on (nsID, title), or nil.
func (s *Service) ActiveProtection(ctx context.Context, nsID int, title string) (*db.PageProtection, error) {
	prot, err := s.db.Queries.GetProtection(ctx, nsID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !prot.IsActive(time.Now()) {
		return nil, nil
	}
	return &prot, nil
}
