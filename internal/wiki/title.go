package wiki

import (
	"net/url"
	"regexp"
	"strings"
)

// htmlEntityPattern matches titles smuggling HTML entities past the decoder.
var htmlEntityPattern = regexp.MustCompile(`&[a-zA-Z][a-zA-Z0-9]*;|&#[0-9]+;|&#[xX][0-9a-fA-F]+;`)

// invalidTitleChar reports characters forbidden in canonical titles.
// Underscores never survive canonicalization; they are listed for callers
// validating already-canonical strings.
func invalidTitleChar(r rune) bool {
	switch r {
	case '%', '@', '<', '>', '_', '#', '|', '{', '}', '[', ']':
		return true
	}
	if r < 0x20 || (r >= 0x7F && r <= 0x9F) {
		return true
	}
	return false
}

// CanonicalizeTitle URL-decodes a raw title, maps underscores to spaces,
// trims trailing spaces and rejects forbidden shapes.
func CanonicalizeTitle(raw string) (string, error) {
	s := raw
	if decoded, err := url.PathUnescape(raw); err == nil {
		s = decoded
	}
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.TrimRight(s, " ")

	if s == "" {
		return "", ErrEmptyTitle
	}
	for _, r := range s {
		if invalidTitleChar(r) {
			return "", &BadTitleError{Char: r}
		}
	}
	if htmlEntityPattern.MatchString(s) {
		return "", &BadTitleError{Char: '&'}
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") || strings.Contains(s, "//") {
		return "", &BadTitleError{Char: '/'}
	}
	return s, nil
}

// SplitTitle splits a canonical title into its namespace and bare title. A
// prefix before ':' naming a known namespace selects it; anything else stays
// in the main namespace.
func (r *NamespaceRegistry) SplitTitle(s string) (*Namespace, string) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		prefix := s[:idx]
		if ns, ok := r.ByName(prefix); ok {
			return ns, strings.TrimLeft(s[idx+1:], " ")
		}
	}
	return r.Main(), s
}

// ResolveTitle canonicalizes a raw title and resolves its namespace.
func (r *NamespaceRegistry) ResolveTitle(raw string) (*Namespace, string, error) {
	s, err := CanonicalizeTitle(raw)
	if err != nil {
		return nil, "", err
	}
	ns, title := r.SplitTitle(s)
	if title == "" {
		return nil, "", ErrEmptyTitle
	}
	return ns, title, nil
}

// URLEncodeTitle converts a canonical title into its URL form: spaces become
// underscores and everything except '/' and ':' is percent-encoded as needed.
func URLEncodeTitle(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// BaseName returns the prefix before the first '/' when the namespace allows
// subpages, else the title itself.
func BaseName(ns *Namespace, title string) string {
	if ns.AllowsSubpages {
		if idx := strings.Index(title, "/"); idx >= 0 {
			return title[:idx]
		}
	}
	return title
}

// PageName returns the suffix after the last '/' when the namespace allows
// subpages, else the title itself.
func PageName(ns *Namespace, title string) string {
	if ns.AllowsSubpages {
		if idx := strings.LastIndex(title, "/"); idx >= 0 {
			return title[idx+1:]
		}
	}
	return title
}

// ParentTitle returns the prefix before the last '/' when the namespace
// allows subpages and the title has a parent, else the title itself.
func ParentTitle(ns *Namespace, title string) string {
	if ns.AllowsSubpages {
		if idx := strings.LastIndex(title, "/"); idx >= 0 {
			return title[:idx]
		}
	}
	return title
}
