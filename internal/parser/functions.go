package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/message"

	"github.com/sa/ottmwiki/internal/wiki"
)

func builtinFunctions() []*Handler {
	fn := func(name string, min, max int, eval func(pc *Context, args []string) (string, error)) *Handler {
		return &Handler{Name: name, MinArgs: min, MaxArgs: max, Eval: eval}
	}

	return []*Handler{
		fn("url_encode", 1, 2, func(pc *Context, args []string) (string, error) {
			mode := "plain"
			if len(args) == 2 {
				mode = args[1]
			}
			switch mode {
			case "plain":
				return url.PathEscape(args[0]), nil
			case "query":
				return url.QueryEscape(args[0]), nil
			case "wiki_path":
				return wiki.URLEncodeTitle(args[0]), nil
			}
			return "", fmt.Errorf("unknown url_encode mode %q", mode)
		}),
		fn("url_decode", 1, 1, func(pc *Context, args []string) (string, error) {
			s, err := url.QueryUnescape(args[0])
			if err != nil {
				return args[0], nil
			}
			return s, nil
		}),

		fn("ns", 1, 1, func(pc *Context, args []string) (string, error) {
			ns, err := resolveNamespaceArg(pc, args[0])
			if err != nil {
				return "", err
			}
			return ns.Name, nil
		}),
		fn("ns_url", 1, 1, func(pc *Context, args []string) (string, error) {
			ns, err := resolveNamespaceArg(pc, args[0])
			if err != nil {
				return "", err
			}
			return wiki.URLEncodeTitle(ns.Name), nil
		}),
		fn("ns_id", 1, 1, func(pc *Context, args []string) (string, error) {
			ns, ok := pc.Namespaces.ByName(args[0])
			if !ok {
				return "", fmt.Errorf("unknown namespace %q", args[0])
			}
			return strconv.Itoa(ns.ID), nil
		}),

		fn("format_number", 1, 2, func(pc *Context, args []string) (string, error) {
			n, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return "", fmt.Errorf("not a number: %q", args[0])
			}
			lang := pc.Cfg.SiteLang
			if len(args) == 2 {
				lang = args[1]
			}
			tag, err := language.Parse(lang)
			if err != nil {
				return args[0], nil
			}
			p := message.NewPrinter(tag)
			if n == float64(int64(n)) {
				return p.Sprintf("%d", int64(n)), nil
			}
			return p.Sprintf("%v", n), nil
		}),
		fn("format_date", 1, 3, func(pc *Context, args []string) (string, error) {
			t, err := parseDateArg(args[0])
			if err != nil {
				return "", err
			}
			if len(args) == 3 {
				return strftime(t, args[2]), nil
			}
			return t.Format("2 January 2006"), nil
		}),

		fn("lc", 1, 1, func(pc *Context, args []string) (string, error) {
			return strings.ToLower(args[0]), nil
		}),
		fn("uc", 1, 1, func(pc *Context, args []string) (string, error) {
			return strings.ToUpper(args[0]), nil
		}),
		fn("lc_first", 1, 1, func(pc *Context, args []string) (string, error) {
			return mapFirst(args[0], unicode.ToLower), nil
		}),
		fn("uc_first", 1, 1, func(pc *Context, args []string) (string, error) {
			return mapFirst(args[0], unicode.ToUpper), nil
		}),

		fn("pad_left", 2, 3, func(pc *Context, args []string) (string, error) {
			return pad(args, true)
		}),
		fn("pad_right", 2, 3, func(pc *Context, args []string) (string, error) {
			return pad(args, false)
		}),
		fn("replace", 3, 3, func(pc *Context, args []string) (string, error) {
			return strings.ReplaceAll(args[0], args[1], args[2]), nil
		}),

		fn("language", 1, 1, func(pc *Context, args []string) (string, error) {
			tag, err := language.Parse(args[0])
			if err != nil {
				return args[0], nil
			}
			name := display.Self.Name(tag)
			if name == "" {
				return args[0], nil
			}
			return name, nil
		}),

		fn("expr", 1, -1, func(pc *Context, args []string) (string, error) {
			v, err := evalArithmetic(strings.Join(args, " "))
			if err != nil {
				return "", err
			}
			return formatFloat(v), nil
		}),

		fn("if", 3, 3, func(pc *Context, args []string) (string, error) {
			if truthy(args[0]) {
				return args[1], nil
			}
			return args[2], nil
		}),
		fn("if_eq", 4, 4, func(pc *Context, args []string) (string, error) {
			if args[0] == args[1] {
				return args[2], nil
			}
			return args[3], nil
		}),
		fn("if_expr", 3, 3, func(pc *Context, args []string) (string, error) {
			v, err := evalArithmetic(args[0])
			if err != nil {
				return "", err
			}
			if v != 0 {
				return args[1], nil
			}
			return args[2], nil
		}),
		fn("if_exists", 3, 3, func(pc *Context, args []string) (string, error) {
			ns, title, err := pc.Namespaces.ResolveTitle(args[0])
			if err != nil {
				return args[2], nil
			}
			exists, err := pc.Store.PageExists(pc.Ctx, ns.ID, title)
			if err != nil {
				return "", err
			}
			if exists {
				return args[1], nil
			}
			return args[2], nil
		}),

		// Statistics producers taking a target argument.
		fn("PAGES_IN_CATEGORY", 1, 2, func(pc *Context, args []string) (string, error) {
			mode := "all"
			if len(args) == 2 {
				mode = args[1]
			}
			var nsIDs []int
			switch mode {
			case "all":
				nsIDs = nil
			case "pages":
				nsIDs = pc.Namespaces.ContentNamespaceIDs()
			case "subcats":
				nsIDs = []int{wiki.NSCategory}
			case "files":
				nsIDs = []int{wiki.NSFile}
			default:
				return "", fmt.Errorf("unknown category mode %q", mode)
			}
			n, err := pc.Store.CountPagesInCategory(pc.Ctx, args[0], nsIDs)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		}),
		fn("NUMBER_IN_GROUP", 1, 1, func(pc *Context, args []string) (string, error) {
			n, err := pc.Store.CountUsersInGroup(pc.Ctx, args[0])
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		}),
		fn("PAGES_IN_NS", 1, 1, func(pc *Context, args []string) (string, error) {
			ns, err := resolveNamespaceArg(pc, args[0])
			if err != nil {
				return "", err
			}
			n, err := pc.Store.CountPagesInNamespace(pc.Ctx, ns.ID)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		}),

		// Set-once content directives.
		fn("DISPLAY_TITLE", 1, 2, func(pc *Context, args []string) (string, error) {
			noReplace := len(args) == 2 && args[1] == "no_replace"
			if pc.displayTitleSet {
				if noReplace {
					return "", nil
				}
				return "", fmt.Errorf("display title already set")
			}
			pc.DisplayTitle = args[0]
			pc.displayTitleSet = true
			return "", nil
		}),
		fn("DEFAULT_SORT_KEY", 1, 2, func(pc *Context, args []string) (string, error) {
			noReplace := len(args) == 2 && args[1] == "no_replace"
			if pc.defaultSortKeySet {
				if noReplace {
					return "", nil
				}
				return "", fmt.Errorf("default sort key already set")
			}
			pc.DefaultSortKey = args[0]
			pc.defaultSortKeySet = true
			return "", nil
		}),
	}
}

// resolveNamespaceArg accepts a namespace id or name.
func resolveNamespaceArg(pc *Context, arg string) (*wiki.Namespace, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		if ns, ok := pc.Namespaces.ByID(id); ok {
			return ns, nil
		}
		return nil, fmt.Errorf("unknown namespace id %d", id)
	}
	if ns, ok := pc.Namespaces.ByName(arg); ok {
		return ns, nil
	}
	return nil, fmt.Errorf("unknown namespace %q", arg)
}

// parseDateArg accepts RFC 3339 timestamps and a few date-only shapes.
func parseDateArg(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// strftime formats t with a subset of the strftime directives.
func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'e':
			fmt.Fprintf(&b, "%d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'B':
			b.WriteString(t.Month().String())
		case 'b':
			b.WriteString(t.Format("Jan"))
		case 'A':
			b.WriteString(t.Weekday().String())
		case 'a':
			b.WriteString(t.Format("Mon"))
		case 'W':
			fmt.Fprintf(&b, "%02d", weekNumber(t))
		case 's':
			fmt.Fprintf(&b, "%d", t.Unix())
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

// mapFirst maps the first rune of s.
func mapFirst(s string, f func(rune) rune) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(f(r)) + s[size:]
}

// pad lengthens args[0] to args[1] runes using the fill string, "0" by
// default.
func pad(args []string, left bool) (string, error) {
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid pad length %q", args[1])
	}
	fill := "0"
	if len(args) == 3 && args[2] != "" {
		fill = args[2]
	}
	s := args[0]
	for utf8.RuneCountInString(s) < n {
		if left {
			s = fill + s
		} else {
			s += fill
		}
	}
	return s, nil
}

// truthy treats empty, "0" and "false" as false.
func truthy(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "0" && s != "false"
}
