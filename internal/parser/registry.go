package parser

import (
	"fmt"
	"sort"
)

// Handler is one named producer: a magic variable (zero-argument) or a
// parser function. MaxArgs of -1 means unlimited.
type Handler struct {
	Name    string
	MinArgs int
	MaxArgs int
	Eval    func(pc *Context, args []string) (string, error)
}

// Registry holds the magic variables, parser functions and template tags.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	variables map[string]*Handler
	functions map[string]*Handler
	tags      map[string]*Tag
}

// NewRegistry builds a registry with every built-in producer and tag.
func NewRegistry() *Registry {
	r := &Registry{
		variables: make(map[string]*Handler),
		functions: make(map[string]*Handler),
		tags:      make(map[string]*Tag),
	}
	for _, h := range builtinMagicVariables() {
		r.RegisterVariable(h)
	}
	for _, h := range builtinFunctions() {
		r.RegisterFunction(h)
	}
	for _, t := range builtinTags() {
		r.RegisterTag(t)
	}
	return r
}

// RegisterVariable adds a magic variable; duplicate names panic, the
// registry being built once at startup.
func (r *Registry) RegisterVariable(h *Handler) {
	if _, dup := r.variables[h.Name]; dup {
		panic("duplicate magic variable " + h.Name)
	}
	r.variables[h.Name] = h
}

// RegisterFunction adds a parser function.
func (r *Registry) RegisterFunction(h *Handler) {
	if _, dup := r.functions[h.Name]; dup {
		panic("duplicate parser function " + h.Name)
	}
	r.functions[h.Name] = h
}

// RegisterTag adds a template tag.
func (r *Registry) RegisterTag(t *Tag) {
	if _, dup := r.tags[t.Name]; dup {
		panic("duplicate template tag " + t.Name)
	}
	r.tags[t.Name] = t
}

// Tag looks up a template tag by name.
func (r *Registry) Tag(name string) (*Tag, bool) {
	t, ok := r.tags[name]
	return t, ok
}

// VariableNames returns the registered magic variable names, sorted.
func (r *Registry) VariableNames() []string {
	names := make([]string, 0, len(r.variables))
	for n := range r.variables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FunctionNames returns the registered parser function names, sorted.
func (r *Registry) FunctionNames() []string {
	names := make([]string, 0, len(r.functions))
	for n := range r.functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves name against the variable registry first, then the
// function registry, checks arity and dispatches.
func (r *Registry) Invoke(pc *Context, name string, args []string) (string, error) {
	if v, ok := r.variables[name]; ok && len(args) == 0 {
		return v.Eval(pc, nil)
	}
	f, ok := r.functions[name]
	if !ok {
		if _, isVar := r.variables[name]; isVar {
			return "", fmt.Errorf("%s takes no arguments", name)
		}
		return "", fmt.Errorf("unknown name %s", name)
	}
	if len(args) < f.MinArgs || (f.MaxArgs >= 0 && len(args) > f.MaxArgs) {
		return "", fmt.Errorf("%s expects between %d and %d arguments, got %d",
			name, f.MinArgs, f.MaxArgs, len(args))
	}
	return f.Eval(pc, args)
}
