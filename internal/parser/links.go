package parser

import (
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sa/ottmwiki/internal/wiki"
)

// wikiLinkPattern matches [[Target]] and [[Target|text]].
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)

// LinkOptions tunes the rendering of one internal link.
type LinkOptions struct {
	Text      string
	Anchor    string
	Params    url.Values
	Classes   []string
	NoRedLink bool
	Disabled  bool
	// Data entries become data-* attributes; booleans serialize as 0/1.
	Data map[string]bool
}

// renderLinks replaces [[...]] occurrences with anchors and records every
// reference in the parse metadata. Category references render to nothing.
func (p *Parser) renderLinks(pc *Context, src string) string {
	return wikiLinkPattern.ReplaceAllStringFunc(src, func(m string) string {
		groups := wikiLinkPattern.FindStringSubmatch(m)
		target, label := groups[1], groups[2]

		anchor := ""
		if idx := strings.Index(target, "#"); idx >= 0 {
			anchor = target[idx+1:]
			target = target[:idx]
		}

		ns, title, err := pc.Namespaces.ResolveTitle(target)
		if err != nil {
			pc.tagError = true
			return errorSpan("bad link target " + target)
		}

		if ns.ID == wiki.NSCategory {
			pc.recordLink(wiki.ExtractedLink{
				NamespaceID: ns.ID,
				Title:       title,
				SortKey:     strings.TrimSpace(label),
				IsCategory:  true,
			})
			return ""
		}

		pc.recordLink(wiki.ExtractedLink{NamespaceID: ns.ID, Title: title})
		return p.FormatInternalLink(pc, ns, title, LinkOptions{Text: label, Anchor: anchor})
	})
}

// FormatInternalLink renders one anchor to (ns, title). Missing targets get
// the red-link treatment; linking a page to itself yields a bold non-link.
func (p *Parser) FormatInternalLink(pc *Context, ns *wiki.Namespace, title string, opts LinkOptions) string {
	fullTitle := ns.FullTitle(title)
	text := opts.Text
	if text == "" {
		text = fullTitle
	}

	selfTarget := pc.Page != nil && pc.Page.Namespace.ID == ns.ID && pc.Page.Title == title
	if selfTarget && opts.Anchor == "" && len(opts.Params) == 0 {
		return `<strong class="wiki-recursive-link">` + html.EscapeString(text) + `</strong>`
	}

	exists := true
	if ns.ID != wiki.NSSpecial {
		var err error
		exists, err = pc.Store.PageExists(pc.Ctx, ns.ID, title)
		if err != nil {
			exists = true
		}
	}

	classes := append([]string(nil), opts.Classes...)
	tooltip := fullTitle
	if !exists && !opts.NoRedLink {
		classes = append(classes, "wiki-red-link")
		tooltip = fullTitle + " (page does not exist)"
	}
	if opts.Disabled {
		classes = append(classes, "disabled")
	}

	href := pc.Cfg.WikiPath + "/" + wiki.URLEncodeTitle(fullTitle)
	if len(opts.Params) > 0 {
		href += "?" + opts.Params.Encode()
	}
	if opts.Anchor != "" {
		href += "#" + url.PathEscape(opts.Anchor)
	}

	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(html.EscapeString(href))
	b.WriteString(`" title="`)
	b.WriteString(html.EscapeString(tooltip))
	b.WriteString(`"`)
	if len(classes) > 0 {
		b.WriteString(` class="`)
		b.WriteString(html.EscapeString(strings.Join(classes, " ")))
		b.WriteString(`"`)
	}
	writeDataAttrs(&b, opts.Data)
	b.WriteString(`>`)
	b.WriteString(html.EscapeString(text))
	b.WriteString(`</a>`)
	return b.String()
}

// FormatExternalLink renders an outbound anchor opening in a new tab.
func FormatExternalLink(target, text string) string {
	if text == "" {
		text = target
	}
	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(html.EscapeString(target))
	b.WriteString(`" class="wiki-external-link" target="_blank" rel="noopener noreferrer">`)
	b.WriteString(html.EscapeString(text))
	b.WriteString(`<span class="wiki-external-link-icon"></span></a>`)
	return b.String()
}

// writeDataAttrs serializes data-* attributes with booleans as 0/1, in
// deterministic order.
func writeDataAttrs(b *strings.Builder, data map[string]bool) {
	if len(data) == 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := "0"
		if data[k] {
			v = "1"
		}
		b.WriteString(` data-`)
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(v)
		b.WriteString(`"`)
	}
}
