package special

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/sa/ottmwiki/internal/wiki"
)

// resolveSubTitle resolves the "<page>" part of a special-page title.
func (d *Dispatcher) resolveSubTitle(r *Request) (*wiki.Namespace, string, error) {
	return d.svc.Namespaces().ResolveTitle(r.SubTitle)
}

// pagination reads results_per_page and page from the query, clamped to the
// configured window.
func (d *Dispatcher) pagination(r *Request) (limit, offset int) {
	limit = d.cfg.DefaultResultsPerPage
	if v, err := strconv.Atoi(r.Query.Get("results_per_page")); err == nil {
		limit = v
	}
	if limit < d.cfg.MinResultsPerPage {
		limit = d.cfg.MinResultsPerPage
	}
	if limit > d.cfg.MaxResultsPerPage {
		limit = d.cfg.MaxResultsPerPage
	}
	pageIndex := 1
	if v, err := strconv.Atoi(r.Query.Get("page")); err == nil && v > 1 {
		pageIndex = v
	}
	return limit, (pageIndex - 1) * limit
}

func miscHandlers() []*Handler {
	return []*Handler{
		{
			Name: "RandomPage",
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				page, err := d.svc.Queries().RandomPage(r.Ctx,
					d.svc.Namespaces().ContentNamespaceIDs())
				if errors.Is(err, sql.ErrNoRows) {
					return &Response{Redirect: &Redirect{PageTitle: d.cfg.MainPage}}, nil
				}
				if err != nil {
					return nil, err
				}
				ns, _ := d.svc.Namespaces().ByID(page.NamespaceID)
				return &Response{Redirect: &Redirect{PageTitle: ns.FullTitle(page.Title)}}, nil
			},
		},
		{
			Name: "RecentChanges",
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				limit, offset := d.pagination(r)
				revs, err := d.svc.Queries().ListRecentRevisions(r.Ctx, limit, offset)
				if err != nil {
					return nil, err
				}
				if r.User.IsAuthenticated() {
					muted, err := d.svc.Queries().ListMutedUserIDs(r.Ctx, r.User.ID())
					if err != nil {
						return nil, err
					}
					if len(muted) > 0 {
						mutedSet := make(map[int64]bool, len(muted))
						for _, id := range muted {
							mutedSet[id] = true
						}
						filtered := revs[:0]
						for _, rev := range revs {
							if !mutedSet[rev.AuthorID] {
								filtered = append(filtered, rev)
							}
						}
						revs = filtered
					}
				}
				return &Response{Data: map[string]interface{}{
					"revisions": revs,
					"limit":     limit,
					"offset":    offset,
				}}, nil
			},
		},
		{
			Name: "Subpages",
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				var pages interface{}
				if ns.AllowsSubpages {
					pages, err = d.svc.Queries().ListSubpages(r.Ctx, ns.ID, title)
					if err != nil {
						return nil, err
					}
				}
				return &Response{Data: map[string]interface{}{
					"target_title":    ns.FullTitle(title),
					"allows_subpages": ns.AllowsSubpages,
					"subpages":        pages,
				}}, nil
			},
		},
		{
			Name: "SpecialPages",
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				return &Response{Data: map[string]interface{}{
					"special_pages": d.Names(),
				}}, nil
			},
		},
	}
}
