package parser

import "fmt"

// Tag is a template-tag definition. Standalone tags evaluate in place;
// paired tags collect a section up to {% end_<name> %} and transform it.
// ParseSection decides whether delimiters are recognized inside the
// section; when false the section text reaches Transform verbatim.
type Tag struct {
	Name       string
	MinArgs    int
	MaxArgs    int // -1 for unlimited
	Standalone bool

	Evaluate     func(pc *Context, args []string) string
	ParseSection func(pc *Context, args []string) bool
	Transform    func(pc *Context, section string) string
}

// builtinTags returns the tag set of the language.
func builtinTags() []*Tag {
	return []*Tag{
		{
			Name: "no_wiki",
			ParseSection: func(pc *Context, args []string) bool {
				return false
			},
			Transform: func(pc *Context, section string) string {
				marker := fmt.Sprintf(noWikiMarker, len(pc.noWikiSubs))
				pc.noWikiSubs = append(pc.noWikiSubs, section)
				return marker
			},
		},
		{
			Name: "include_only",
			ParseSection: func(pc *Context, args []string) bool {
				return pc.Transcluded
			},
			Transform: func(pc *Context, section string) string {
				if pc.Transcluded {
					return section
				}
				return ""
			},
		},
		{
			Name: "no_include",
			ParseSection: func(pc *Context, args []string) bool {
				return !pc.Transcluded
			},
			Transform: func(pc *Context, section string) string {
				if !pc.Transcluded {
					return section
				}
				return ""
			},
		},
	}
}
