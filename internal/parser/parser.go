// Package parser implements the wikicode language: template tags,
// expression insertion, magic variables, parser functions, HTML
// sanitization and link rendering.
package parser

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/wiki"
)

// Store is the read-only repository view the parser consults while
// expanding a page. *wiki.Service satisfies it.
type Store interface {
	PageExists(ctx context.Context, namespaceID int, title string) (bool, error)
	Stats(ctx context.Context) (wiki.SiteStats, error)
	CountPagesInCategory(ctx context.Context, catTitle string, namespaceIDs []int) (int64, error)
	CountPagesInNamespace(ctx context.Context, namespaceID int) (int64, error)
	CountUsersInGroup(ctx context.Context, label string) (int64, error)
	ActiveProtection(ctx context.Context, namespaceID int, title string) (*db.PageProtection, error)
}

// Context carries everything one parse run may read, plus the state it
// accumulates. A Context is used for a single parse and never shared.
type Context struct {
	Ctx        context.Context
	Cfg        *config.Config
	Store      Store
	Namespaces *wiki.NamespaceRegistry
	User       *models.User
	Page       *wiki.Page
	Revision   *db.Revision
	// RevisionAuthor is the resolved author name of Revision, when known.
	RevisionAuthor string
	Now            time.Time

	// Transcluded is set when this content is being expanded inside
	// another page rather than read directly.
	Transcluded bool

	// DisplayTitle and DefaultSortKey are set-once content directives.
	DisplayTitle      string
	displayTitleSet   bool
	DefaultSortKey    string
	defaultSortKeySet bool

	links      []wiki.ExtractedLink
	linksSeen  map[string]bool
	noWikiSubs []string
	tagError   bool
	depth      int
	expanded   int
}

// Metadata is the record produced alongside the HTML of a parse.
type Metadata struct {
	Links            []wiki.ExtractedLink
	Categories       []wiki.ExtractedLink
	ParseDurationMs  int64
	ParseDate        time.Time
	SizeBefore       int64
	SizeAfter        int64
	TemplateTagError bool
}

// Result is a finished parse.
type Result struct {
	HTML           string
	DisplayTitle   string
	DefaultSortKey string
	Metadata       Metadata
}

// Parser expands wikicode into HTML. It is stateless and safe for
// concurrent use; all per-run state lives in the Context.
type Parser struct {
	reg *Registry
}

// New creates a Parser over the given registry.
func New(reg *Registry) *Parser {
	return &Parser{reg: reg}
}

// errorSpan renders an inline error marker.
func errorSpan(msg string) string {
	return `<span class="wiki-parser-error">` + html.EscapeString(msg) + `</span>`
}

const noWikiMarker = "\x02noWiki:%d\x03"

// Parse runs the full pipeline: tag expansion, sanitization, link
// rendering and placeholder substitution.
func (p *Parser) Parse(pc *Context, content string) (Result, error) {
	start := time.Now()
	pc.linksSeen = make(map[string]bool)

	expanded, err := p.expand(pc, content)
	if err != nil {
		return Result{}, err
	}

	sanitized := Sanitize(expanded)
	linked := p.renderLinks(pc, sanitized)

	for i, sub := range pc.noWikiSubs {
		marker := fmt.Sprintf(noWikiMarker, i)
		escaped := strings.ReplaceAll(strings.ReplaceAll(sub, "<", "&lt;"), ">", "&gt;")
		linked = strings.Replace(linked, marker, escaped, 1)
	}

	var links, cats []wiki.ExtractedLink
	for _, l := range pc.links {
		if l.IsCategory {
			cats = append(cats, l)
		} else {
			links = append(links, l)
		}
	}

	return Result{
		HTML:           linked,
		DisplayTitle:   pc.DisplayTitle,
		DefaultSortKey: pc.DefaultSortKey,
		Metadata: Metadata{
			Links:            links,
			Categories:       cats,
			ParseDurationMs:  time.Since(start).Milliseconds(),
			ParseDate:        start,
			SizeBefore:       int64(len(content)),
			SizeAfter:        int64(len(linked)),
			TemplateTagError: pc.tagError,
		},
	}, nil
}

// frame is one level of the tag parse stack.
type frame struct {
	buf          strings.Builder
	tag          *Tag
	parseSection bool
}

// expand evaluates comments, expression insertions and template tags.
func (p *Parser) expand(pc *Context, src string) (string, error) {
	if pc.depth >= pc.Cfg.MaxTranscludeDepth {
		return errorSpan("recursion depth exceeded"), nil
	}
	pc.depth++
	defer func() { pc.depth-- }()

	stack := []*frame{{parseSection: true}}
	top := func() *frame { return stack[len(stack)-1] }

	i := 0
	for i < len(src) {
		f := top()

		if pc.expanded+f.buf.Len() > pc.Cfg.MaxParseLength {
			return "", wiki.ErrParseTooLarge
		}

		if !f.parseSection {
			// Verbatim section: only the matching end tag is recognized.
			end, next, found := findEndTag(src, i, f.tag.Name)
			if !found {
				f.buf.WriteString(src[i:])
				i = len(src)
				pc.tagError = true
				popped := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				top().buf.WriteString(errorSpan("unclosed tag " + popped.tag.Name))
				top().buf.WriteString(popped.buf.String())
				continue
			}
			f.buf.WriteString(src[i:end])
			i = next
			popped := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top().buf.WriteString(popped.tag.Transform(pc, popped.buf.String()))
			continue
		}

		switch {
		case strings.HasPrefix(src[i:], "{#"):
			end := strings.Index(src[i+2:], "#}")
			if end < 0 {
				pc.tagError = true
				f.buf.WriteString(errorSpan("unclosed comment"))
				i = len(src)
				continue
			}
			i += 2 + end + 2

		case strings.HasPrefix(src[i:], "{="):
			body, next, found := scanUntil(src, i+2, "=}")
			if !found {
				pc.tagError = true
				f.buf.WriteString(errorSpan("unclosed expression"))
				i = len(src)
				continue
			}
			f.buf.WriteString(p.evalExpression(pc, body))
			i = next

		case strings.HasPrefix(src[i:], "{%"):
			body, next, found := scanUntil(src, i+2, "%}")
			if !found {
				pc.tagError = true
				f.buf.WriteString(errorSpan("unclosed tag"))
				i = len(src)
				continue
			}
			i = next
			name, args, err := splitTokens(body)
			if err != nil || name == "" {
				pc.tagError = true
				f.buf.WriteString(errorSpan("malformed tag"))
				continue
			}

			if strings.HasPrefix(name, "end_") {
				want := strings.TrimPrefix(name, "end_")
				if f.tag == nil || f.tag.Name != want {
					pc.tagError = true
					f.buf.WriteString(errorSpan("unexpected end tag " + name))
					continue
				}
				popped := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				top().buf.WriteString(popped.tag.Transform(pc, popped.buf.String()))
				continue
			}

			tag, ok := p.reg.Tag(name)
			if !ok {
				pc.tagError = true
				f.buf.WriteString(errorSpan("unknown tag " + name))
				continue
			}
			if len(args) < tag.MinArgs || (tag.MaxArgs >= 0 && len(args) > tag.MaxArgs) {
				pc.tagError = true
				f.buf.WriteString(errorSpan("wrong argument count for " + name))
				continue
			}
			if tag.Standalone {
				f.buf.WriteString(tag.Evaluate(pc, args))
				continue
			}
			stack = append(stack, &frame{tag: tag, parseSection: tag.ParseSection(pc, args)})

		default:
			f.buf.WriteByte(src[i])
			i++
		}
	}

	// Unterminated frames are flattened with an error marker.
	for len(stack) > 1 {
		pc.tagError = true
		popped := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top().buf.WriteString(errorSpan("unclosed tag " + popped.tag.Name))
		top().buf.WriteString(popped.buf.String())
	}

	out := stack[0].buf.String()
	pc.expanded += len(out)
	if pc.expanded > pc.Cfg.MaxParseLength {
		return "", wiki.ErrParseTooLarge
	}
	return out, nil
}

// evalExpression evaluates the body of a {= ... =} insertion.
func (p *Parser) evalExpression(pc *Context, body string) string {
	name, args, err := splitTokens(body)
	if err != nil || name == "" {
		pc.tagError = true
		return errorSpan("malformed expression")
	}
	// Arguments may carry HTML entities from earlier expansion.
	for i, a := range args {
		args[i] = html.UnescapeString(a)
	}
	out, err := p.reg.Invoke(pc, name, args)
	if err != nil {
		pc.tagError = true
		return errorSpan(err.Error())
	}
	return out
}

// scanUntil finds the closer outside any string literal, returning the body
// between from and the closer plus the index just past the closer.
func scanUntil(src string, from int, closer string) (body string, next int, found bool) {
	inString := false
	escaped := false
	for i := from; i < len(src); i++ {
		c := src[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		if strings.HasPrefix(src[i:], closer) {
			return src[from:i], i + len(closer), true
		}
	}
	return "", 0, false
}

// findEndTag locates {% end_<name> %} starting at from. It returns the
// index of the opener and the index just past the closer.
func findEndTag(src string, from int, name string) (start, next int, found bool) {
	for i := from; i < len(src); i++ {
		if !strings.HasPrefix(src[i:], "{%") {
			continue
		}
		body, after, ok := scanUntil(src, i+2, "%}")
		if !ok {
			return 0, 0, false
		}
		tagName, _, err := splitTokens(body)
		if err == nil && tagName == "end_"+name {
			return i, after, true
		}
	}
	return 0, 0, false
}

// splitTokens tokenizes a tag or expression body into a name and argument
// list. Arguments are bare words or double-quoted strings with \" and \\
// escapes.
func splitTokens(body string) (string, []string, error) {
	var tokens []string
	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(body) {
				if body[i] == '\\' && i+1 < len(body) {
					b.WriteByte(body[i+1])
					i += 2
					continue
				}
				if body[i] == '"' {
					i++
					closed = true
					break
				}
				b.WriteByte(body[i])
				i++
			}
			if !closed {
				return "", nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, b.String())
		default:
			start := i
			for i < len(body) && body[i] != ' ' && body[i] != '\t' &&
				body[i] != '\n' && body[i] != '\r' && body[i] != '"' {
				i++
			}
			tokens = append(tokens, body[start:i])
		}
	}
	if len(tokens) == 0 {
		return "", nil, nil
	}
	return tokens[0], tokens[1:], nil
}

// recordLink adds one extracted reference to the parse metadata, once.
func (pc *Context) recordLink(l wiki.ExtractedLink) {
	key := fmt.Sprintf("%d:%s", l.NamespaceID, l.Title)
	if pc.linksSeen[key] {
		return
	}
	pc.linksSeen[key] = true
	pc.links = append(pc.links, l)
}
