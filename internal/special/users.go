package special

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/sa/ottmwiki/internal/wiki"
)

// lookupTargetUser resolves the "<user>" part of a special-page title to an
// account, trying the anonymous IP form as well.
func (d *Dispatcher) lookupTargetUser(r *Request) (interface{}, int64, string, error) {
	name := strings.TrimSpace(r.SubTitle)
	if name == "" {
		return nil, 0, "", wiki.ErrEmptyTitle
	}
	u, err := d.svc.Queries().GetUserByName(r.Ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		u, err = d.svc.Queries().GetAnonymousUserByIP(r.Ctx, name)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, "", wiki.ErrPageDoesNotExist
	}
	if err != nil {
		return nil, 0, "", err
	}
	return u, u.ID, u.Name, nil
}

func userHandlers() []*Handler {
	return []*Handler{
		{
			Name: "Contributions",
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				target, targetID, targetName, err := d.lookupTargetUser(r)
				if err != nil {
					return nil, err
				}
				limit, offset := d.pagination(r)
				revs, err := d.svc.Queries().ListContributions(r.Ctx, targetID, limit, offset)
				if err != nil {
					return nil, err
				}
				return &Response{Data: map[string]interface{}{
					"target_user": target,
					"target_name": targetName,
					"revisions":   revs,
					"limit":       limit,
					"offset":      offset,
				}}, nil
			},
		},
		{
			Name:         "Mute",
			RequiresAuth: true,
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				_, targetID, targetName, err := d.lookupTargetUser(r)
				if err != nil {
					return nil, err
				}
				if r.IsPost {
					if r.Form.Get("unmute") == "1" {
						err = d.svc.Queries().UnmuteUser(r.Ctx, r.User.ID(), targetID)
					} else {
						err = d.svc.Queries().MuteUser(r.Ctx, r.User.ID(), targetID)
					}
					if err != nil {
						return nil, err
					}
					return redirectDone("Special:Mute/" + targetName), nil
				}
				muted, err := d.svc.Queries().IsMuted(r.Ctx, r.User.ID(), targetID)
				if err != nil {
					return nil, err
				}
				return &Response{Data: map[string]interface{}{
					"target_name": targetName,
					"muted":       muted,
				}}, nil
			},
		},
		{
			Name:         "SendEmail",
			RequiresAuth: true,
			Handle: func(d *Dispatcher, r *Request) (*Response, error) {
				target, _, targetName, err := d.lookupTargetUser(r)
				if err != nil {
					return nil, err
				}
				// No outbound mail transport is configured; the form is
				// rendered disabled.
				return &Response{Data: map[string]interface{}{
					"target_user": target,
					"target_name": targetName,
					"can_send":    false,
				}}, nil
			},
		},
		{
			Name:         "EditFollowList",
			RequiresAuth: true,
			Handle:       handleEditFollowList,
		},
	}
}

func handleEditFollowList(d *Dispatcher, r *Request) (*Response, error) {
	q := d.svc.Queries()

	if r.SubTitle == "clear" || (r.IsPost && r.Form.Get("clear") == "1") {
		if err := q.DeleteAllFollows(r.Ctx, r.User.ID()); err != nil {
			return nil, err
		}
		return redirectDone("Special:EditFollowList"), nil
	}

	if r.IsPost {
		// The posted text replaces the whole list, one title per line.
		if err := q.DeleteAllFollows(r.Ctx, r.User.ID()); err != nil {
			return nil, err
		}
		for _, line := range strings.Split(r.Form.Get("titles"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			ns, title, err := d.svc.Namespaces().ResolveTitle(line)
			if err != nil || ns.ID == wiki.NSSpecial {
				continue
			}
			if _, err := d.svc.Follow(r.Ctx, r.User, ns, title, true); err != nil {
				return nil, err
			}
		}
		return redirectDone("Special:EditFollowList"), nil
	}

	follows, err := q.ListFollows(r.Ctx, r.User.ID())
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(follows))
	for _, f := range follows {
		ns, ok := d.svc.Namespaces().ByID(f.NamespaceID)
		if !ok {
			continue
		}
		titles = append(titles, ns.FullTitle(f.Title))
	}

	if r.SubTitle == "raw" {
		return &Response{Data: map[string]interface{}{
			"raw":    true,
			"titles": titles,
		}}, nil
	}
	return &Response{Data: map[string]interface{}{
		"follows": follows,
		"titles":  titles,
	}}, nil
}
