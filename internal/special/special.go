// Package special implements the Special: pseudo-namespace pages.
package special

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/wiki"
)

// ErrSpecialPageDoesNotExist marks a request for an unknown special page.
var ErrSpecialPageDoesNotExist = errors.New("special page does not exist")

// Request is one special-page invocation. SubTitle is the part of the
// title after "Special:Name/".
type Request struct {
	Ctx      context.Context
	User     *models.User
	SubTitle string
	Query    url.Values
	Form     url.Values
	IsPost   bool
}

// Redirect sends the client to another wiki page, post/redirect/get style.
type Redirect struct {
	PageTitle string
	Params    url.Values
}

// Response is the outcome of a handler: either a redirect or view data.
type Response struct {
	Redirect *Redirect
	Data     map[string]interface{}
}

// redirectDone builds the ?done=true redirect used after a successful POST.
func redirectDone(pageTitle string) *Response {
	return &Response{Redirect: &Redirect{
		PageTitle: pageTitle,
		Params:    url.Values{"done": {"true"}},
	}}
}

// Handler is one special page.
type Handler struct {
	Name          string
	PermsRequired []string
	// RequiresAuth restricts the page to logged-in users.
	RequiresAuth bool
	Handle       func(d *Dispatcher, r *Request) (*Response, error)
}

// Dispatcher holds the closed set of special pages and authorizes before
// delegating.
type Dispatcher struct {
	cfg      *config.Config
	svc      *wiki.Service
	logger   *slog.Logger
	handlers map[string]*Handler
}

// NewDispatcher builds a dispatcher with every built-in special page.
func NewDispatcher(cfg *config.Config, svc *wiki.Service, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		svc:      svc,
		logger:   logger,
		handlers: make(map[string]*Handler),
	}
	for _, h := range builtinHandlers() {
		d.handlers[h.Name] = h
	}
	return d
}

// Names returns every special page name, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a handler by name.
func (d *Dispatcher) Lookup(name string) (*Handler, bool) {
	h, ok := d.handlers[name]
	return h, ok
}

// Dispatch authorizes the principal against the named page and runs it.
func (d *Dispatcher) Dispatch(name string, r *Request) (*Response, error) {
	h, ok := d.handlers[name]
	if !ok {
		return nil, ErrSpecialPageDoesNotExist
	}
	if h.RequiresAuth && !r.User.IsAuthenticated() {
		return nil, &wiki.MissingPermissionError{Perms: []string{"authenticated"}}
	}
	var missing []string
	for _, perm := range h.PermsRequired {
		if !r.User.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		return nil, &wiki.MissingPermissionError{Perms: missing}
	}
	return h.Handle(d, r)
}
