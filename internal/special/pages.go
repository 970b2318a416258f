package special

import (
	"strconv"
	"strings"
	"time"

	"github.com/sa/ottmwiki/internal/wiki"
)

// parseEndDate reads an optional "end_date" form value, empty meaning
// indefinite.
func parseEndDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, wiki.ErrEmptyTitle
}

func pageAdminHandlers() []*Handler {
	return []*Handler{
		{
			Name:          "DeletePage",
			PermsRequired: []string{wiki.PermWikiDelete},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					return d.pageFormData(r, ns, title)
				}
				if err := d.svc.Delete(r.Ctx, r.User, ns, title, r.Form.Get("reason")); err != nil {
					return nil, err
				}
				return redirectDone("Special:DeletePage/" + ns.FullTitle(title)), nil
			},
		},
		{
			Name:          "RenamePage",
			PermsRequired: []string{wiki.PermWikiRename},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					return d.pageFormData(r, ns, title)
				}
				targetNS, targetTitle, err := d.svc.Namespaces().ResolveTitle(r.Form.Get("new_title"))
				if err != nil {
					return nil, err
				}
				err = d.svc.Rename(r.Ctx, r.User, ns, title, targetNS, targetTitle, wiki.RenameParams{
					Reason:        r.Form.Get("reason"),
					LeaveRedirect: r.Form.Get("leave_redirect") == "1",
				})
				if err != nil {
					return nil, err
				}
				return redirectDone(targetNS.FullTitle(targetTitle)), nil
			},
		},
		{
			Name:          "ProtectPage",
			PermsRequired: []string{wiki.PermWikiProtect},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					prot, err := d.svc.ActiveProtection(r.Ctx, ns.ID, title)
					if err != nil {
						return nil, err
					}
					return &Response{Data: map[string]interface{}{
						"target_title": ns.FullTitle(title),
						"protection":   prot,
					}}, nil
				}
				endDate, err := parseEndDate(r.Form.Get("end_date"))
				if err != nil {
					return nil, err
				}
				err = d.svc.Protect(r.Ctx, r.User, ns, title, wiki.ProtectParams{
					Level:        r.Form.Get("level"),
					EndDate:      endDate,
					ProtectTalks: r.Form.Get("protect_talks") == "1",
					Reason:       r.Form.Get("reason"),
				})
				if err != nil {
					return nil, err
				}
				return redirectDone("Special:ProtectPage/" + ns.FullTitle(title)), nil
			},
		},
		{
			Name:          "ChangePageLanguage",
			PermsRequired: []string{wiki.PermWikiRename},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					return d.pageFormData(r, ns, title)
				}
				err = d.svc.SetContentLanguage(r.Ctx, r.User, ns, title,
					r.Form.Get("language"), r.Form.Get("reason"))
				if err != nil {
					return nil, err
				}
				return redirectDone("Special:ChangePageLanguage/" + ns.FullTitle(title)), nil
			},
		},
		{
			Name:          "ChangePageContentType",
			PermsRequired: []string{wiki.PermWikiRename},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ns, title, err := d.resolveSubTitle(r)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					return d.pageFormData(r, ns, title)
				}
				err = d.svc.SetContentType(r.Ctx, r.User, ns, title,
					r.Form.Get("content_type"), r.Form.Get("reason"))
				if err != nil {
					return nil, err
				}
				return redirectDone("Special:ChangePageContentType/" + ns.FullTitle(title)), nil
			},
		},
		{
			Name:          "MaskRevisions",
			PermsRequired: []string{wiki.PermWikiMask},
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				ids, err := parseRevisionIDs(r.SubTitle)
				if err != nil {
					return nil, err
				}
				if !r.IsPost {
					revs, err := d.svc.Queries().ListRevisionsByIDs(r.Ctx, ids)
					if err != nil {
						return nil, err
					}
					return &Response{Data: map[string]interface{}{
						"revisions": revs,
					}}, nil
				}
				ns, title, err := d.svc.Namespaces().ResolveTitle(r.Form.Get("title"))
				if err != nil {
					return nil, err
				}
				action := wiki.MaskAction(r.Form.Get("mask_action"))
				err = d.svc.MaskRevisions(r.Ctx, r.User, ns, title, ids, action, r.Form.Get("reason"))
				if err != nil {
					return nil, err
				}
				return redirectDone(ns.FullTitle(title)), nil
			},
		},
	}
}

// pageFormData is the GET response of the page-admin forms.
func (d *Dispatcher) pageFormData(r *Request, ns *wiki.Namespace, title string) (*Response, error) {
	page, err := d.svc.Get(r.Ctx, ns, title)
	if err != nil {
		return nil, err
	}
	if !page.Exists || page.Deleted {
		return nil, wiki.ErrPageDoesNotExist
	}
	return &Response{Data: map[string]interface{}{
		"target_title": page.FullTitle(),
		"page":         page,
	}}, nil
}

// parseRevisionIDs reads the "/id1/id2/..." subtitle of MaskRevisions.
func parseRevisionIDs(subTitle string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(subTitle, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, wiki.ErrRevisionDoesNotExist
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, wiki.ErrRevisionDoesNotExist
	}
	return ids, nil
}
