package wiki

import (
	"context"
	"time"
)

// activeUserWindow is how far back an edit still counts a user as active.
const activeUserWindow = 30 * 24 * time.Hour

func activeUserCutoff() time.Time {
	return time.Now().Add(-activeUserWindow)
}

// SiteStats is a snapshot of the wiki-wide counters surfaced by the
// statistics variables of the page language.
type SiteStats struct {
	Pages       int64
	Articles    int64
	Edits       int64
	Users       int64
	ActiveUsers int64
	Admins      int64
}

// Stats computes the current site statistics.
func (s *Service) Stats(ctx context.Context) (SiteStats, error) {
	var st SiteStats
	var err error
	q := s.db.Queries

	if st.Pages, err = q.CountPages(ctx); err != nil {
		return st, err
	}
	if st.Articles, err = q.CountArticles(ctx, s.ns.ContentNamespaceIDs()); err != nil {
		return st, err
	}
	if st.Edits, err = q.CountEdits(ctx); err != nil {
		return st, err
	}
	if st.Users, err = q.CountUsers(ctx); err != nil {
		return st, err
	}
	if st.ActiveUsers, err = q.CountActiveUsers(ctx, activeUserCutoff()); err != nil {
		return st, err
	}
	if st.Admins, err = q.CountUsersInGroup(ctx, GroupAdmins); err != nil {
		return st, err
	}
	return st, nil
}

// CountPagesInCategory counts category members, optionally restricted to a
// set of namespaces. A nil restriction counts everything.
func (s *Service) CountPagesInCategory(ctx context.Context, catTitle string, namespaceIDs []int) (int64, error) {
	return s.db.Queries.CountPagesInCategoryByNamespace(ctx, catTitle, namespaceIDs)
}

// CountPagesInNamespace counts non-deleted pages in one namespace.
func (s *Service) CountPagesInNamespace(ctx context.Context, namespaceID int) (int64, error) {
	return s.db.Queries.CountPagesInNamespace(ctx, namespaceID)
}

// CountUsersInGroup counts the members of the named group.
func (s *Service) CountUsersInGroup(ctx context.Context, label string) (int64, error) {
	return s.db.Queries.CountUsersInGroup(ctx, label)
}

// CountRevisions counts the revisions of a page; zero for shadow pages.
func (s *Service) CountRevisions(ctx context.Context, page *Page) (int64, error) {
	if !page.Exists {
		return 0, nil
	}
	return s.db.Queries.CountRevisions(ctx, page.ID)
}
