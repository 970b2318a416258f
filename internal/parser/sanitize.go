package parser

import (
	"html"
	"strings"
)

// tagSpec describes one allowed HTML tag.
type tagSpec struct {
	Block bool
	Void  bool
	// Attrs are the tag-specific allowed attributes, on top of the
	// global ones.
	Attrs []string
}

// globalAttrs are accepted on every allowed tag.
var globalAttrs = []string{"id", "class", "title", "lang", "dir", "style"}

// allowedTags is the fixed allow-list of standard HTML tags.
var allowedTags = map[string]tagSpec{
	"a":          {Attrs: []string{"href", "target", "rel"}},
	"abbr":       {},
	"address":    {Block: true},
	"area":       {Void: true, Attrs: []string{"href", "alt", "shape", "coords"}},
	"aside":      {Block: true},
	"b":          {},
	"bdi":        {},
	"bdo":        {},
	"blockquote": {Block: true, Attrs: []string{"cite"}},
	"br":         {Void: true},
	"caption":    {},
	"cite":       {},
	"code":       {},
	"col":        {Void: true, Attrs: []string{"span"}},
	"colgroup":   {Attrs: []string{"span"}},
	"data":       {Attrs: []string{"value"}},
	"dd":         {Block: true},
	"del":        {Attrs: []string{"cite", "datetime"}},
	"details":    {Block: true, Attrs: []string{"open"}},
	"dfn":        {},
	"div":        {Block: true},
	"dl":         {Block: true},
	"dt":         {Block: true},
	"em":         {},
	"hr":         {Block: true, Void: true},
	"i":          {},
	"ins":        {Attrs: []string{"cite", "datetime"}},
	"kbd":        {},
	"label":      {Attrs: []string{"for"}},
	"li":         {Block: true, Attrs: []string{"value"}},
	"map":        {Attrs: []string{"name"}},
	"mark":       {},
	"meter":      {Attrs: []string{"value", "min", "max", "low", "high", "optimum"}},
	"nav":        {Block: true},
	"ol":         {Block: true, Attrs: []string{"start", "reversed", "type"}},
	"p":          {Block: true},
	"pre":        {Block: true},
	"progress":   {Attrs: []string{"value", "max"}},
	"q":          {Attrs: []string{"cite"}},
	"rp":         {},
	"rt":         {},
	"ruby":       {},
	"s":          {},
	"samp":       {},
	"section":    {Block: true},
	"small":      {},
	"span":       {},
	"strong":     {},
	"sub":        {},
	"summary":    {},
	"table":      {Block: true},
	"tbody":      {},
	"td":         {Attrs: []string{"colspan", "rowspan", "headers"}},
	"template":   {},
	"tfoot":      {},
	"th":         {Attrs: []string{"colspan", "rowspan", "headers", "scope", "abbr"}},
	"thead":      {},
	"time":       {Attrs: []string{"datetime"}},
	"tr":         {},
	"u":          {},
	"ul":         {Block: true},
	"var":        {},
	"wbr":        {Void: true},
}

// customTags are wiki-specific tags handled downstream by the renderer.
var customTags = map[string]tagSpec{
	"gallery":    {Block: true, Attrs: []string{"mode", "widths", "heights"}},
	"ref":        {Attrs: []string{"name", "group"}},
	"references": {Block: true, Void: true, Attrs: []string{"group"}},
}

func lookupTag(name string) (tagSpec, bool) {
	if spec, ok := allowedTags[name]; ok {
		return spec, true
	}
	spec, ok := customTags[name]
	return spec, ok
}

func attrAllowed(spec tagSpec, name string) bool {
	if strings.HasPrefix(name, "data-") {
		return true
	}
	for _, a := range globalAttrs {
		if a == name {
			return true
		}
	}
	for _, a := range spec.Attrs {
		if a == name {
			return true
		}
	}
	return false
}

// Sanitize rewrites raw HTML against the allow-list: unknown tags are
// literalized, unknown attributes stripped. The text outside tags is
// passed through untouched.
func Sanitize(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		if c != '<' {
			b.WriteByte(c)
			i++
			continue
		}
		tag, next, ok := parseTag(src, i)
		if !ok {
			b.WriteString("&lt;")
			i++
			continue
		}
		spec, allowed := lookupTag(tag.name)
		if !allowed {
			b.WriteString("&lt;")
			i++
			continue
		}
		b.WriteString(rebuildTag(tag, spec))
		i = next
	}
	return b.String()
}

type parsedTag struct {
	name    string
	closing bool
	attrs   []parsedAttr
}

type parsedAttr struct {
	name  string
	value string
	bare  bool
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '-'
}

// parseTag reads one tag starting at the '<' at position i. It returns
// ok = false when the text is not a well-formed tag.
func parseTag(src string, i int) (parsedTag, int, bool) {
	var t parsedTag
	j := i + 1
	if j < len(src) && src[j] == '/' {
		t.closing = true
		j++
	}
	start := j
	for j < len(src) && isNameByte(src[j]) {
		j++
	}
	if j == start {
		return t, 0, false
	}
	first := src[start]
	if !(first >= 'a' && first <= 'z' || first >= 'A' && first <= 'Z') {
		return t, 0, false
	}
	t.name = strings.ToLower(src[start:j])

	for j < len(src) {
		for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
			j++
		}
		if j >= len(src) {
			return t, 0, false
		}
		if src[j] == '>' {
			return t, j + 1, true
		}
		if src[j] == '/' && j+1 < len(src) && src[j+1] == '>' {
			return t, j + 2, true
		}

		nameStart := j
		for j < len(src) && isNameByte(src[j]) {
			j++
		}
		if j == nameStart {
			return t, 0, false
		}
		attr := parsedAttr{name: strings.ToLower(src[nameStart:j]), bare: true}

		if j < len(src) && src[j] == '=' {
			j++
			attr.bare = false
			if j < len(src) && (src[j] == '"' || src[j] == '\'') {
				quote := src[j]
				j++
				valStart := j
				for j < len(src) && src[j] != quote {
					j++
				}
				if j >= len(src) {
					return t, 0, false
				}
				attr.value = src[valStart:j]
				j++
			} else {
				valStart := j
				for j < len(src) && src[j] != ' ' && src[j] != '\t' && src[j] != '>' {
					j++
				}
				attr.value = src[valStart:j]
			}
		}
		t.attrs = append(t.attrs, attr)
	}
	return t, 0, false
}

// rebuildTag serializes a parsed tag keeping only allowed attributes.
func rebuildTag(t parsedTag, spec tagSpec) string {
	var b strings.Builder
	b.WriteByte('<')
	if t.closing {
		b.WriteByte('/')
		b.WriteString(t.name)
		b.WriteByte('>')
		return b.String()
	}
	b.WriteString(t.name)
	for _, a := range t.attrs {
		if !attrAllowed(spec, a.name) {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.name)
		if !a.bare {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.value))
			b.WriteByte('"')
		}
	}
	b.WriteByte('>')
	return b.String()
}
