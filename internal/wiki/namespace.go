package wiki

import "strings"

// Namespace ids. The set is closed; ids are stable and persisted in page rows.
const (
	NSSpecial   = -1
	NSMain      = 0
	NSCategory  = 1
	NSWiki      = 2
	NSHelp      = 3
	NSUser      = 4
	NSTemplate  = 10
	NSModule    = 11
	NSInterface = 12
	NSFile      = 13
)

// Namespace is one partition of the page title space.
type Namespace struct {
	ID             int
	Name           string
	Aliases        []string
	IsContent      bool
	AllowsSubpages bool
	IsEditable     bool
	PermsRequired  []string
}

// FullTitle returns the namespaced form of a title: bare for Main,
// "<name>:<title>" otherwise.
func (ns *Namespace) FullTitle(title string) string {
	if ns.ID == NSMain {
		return title
	}
	return ns.Name + ":" + title
}

// NamespaceRegistry is the process-wide immutable namespace set, indexed by
// id and by lower-cased name or alias.
type NamespaceRegistry struct {
	byID   map[int]*Namespace
	byName map[string]*Namespace
	all    []*Namespace
}

// NewNamespaceRegistry builds the closed namespace set.
func NewNamespaceRegistry() *NamespaceRegistry {
	namespaces := []*Namespace{
		{ID: NSSpecial, Name: "Special", IsEditable: false},
		{ID: NSMain, Name: "Main", Aliases: []string{""}, IsContent: true, IsEditable: true},
		{ID: NSCategory, Name: "Category", IsEditable: true},
		{ID: NSWiki, Name: "Wiki", AllowsSubpages: true, IsEditable: true},
		{ID: NSHelp, Name: "Help", AllowsSubpages: true, IsEditable: true},
		{ID: NSUser, Name: "User", AllowsSubpages: true, IsEditable: true},
		{ID: NSTemplate, Name: "Template", AllowsSubpages: true, IsEditable: true},
		{ID: NSModule, Name: "Module", AllowsSubpages: true, IsEditable: true},
		{ID: NSInterface, Name: "Interface", AllowsSubpages: true, IsEditable: true,
			PermsRequired: []string{PermWikiEditInterface}},
		{ID: NSFile, Name: "File", IsEditable: true},
	}

	r := &NamespaceRegistry{
		byID:   make(map[int]*Namespace, len(namespaces)),
		byName: make(map[string]*Namespace, len(namespaces)),
		all:    namespaces,
	}
	for _, ns := range namespaces {
		r.byID[ns.ID] = ns
		r.byName[strings.ToLower(ns.Name)] = ns
		for _, alias := range ns.Aliases {
			r.byName[strings.ToLower(alias)] = ns
		}
	}
	return r
}

// ByID returns the namespace with the given id.
func (r *NamespaceRegistry) ByID(id int) (*Namespace, bool) {
	ns, ok := r.byID[id]
	return ns, ok
}

// ByName returns the namespace with the given name or alias,
// case-insensitively.
func (r *NamespaceRegistry) ByName(name string) (*Namespace, bool) {
	ns, ok := r.byName[strings.ToLower(name)]
	return ns, ok
}

// Main returns the main namespace.
func (r *NamespaceRegistry) Main() *Namespace {
	return r.byID[NSMain]
}

// All returns every namespace in declaration order.
func (r *NamespaceRegistry) All() []*Namespace {
	return r.all
}

// ContentNamespaceIDs returns the ids of content namespaces.
func (r *NamespaceRegistry) ContentNamespaceIDs() []int {
	var ids []int
	for _, ns := range r.all {
		if ns.IsContent {
			ids = append(ids, ns.ID)
		}
	}
	return ids
}
