package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/wiki"
)

// weekNumber is the strftime %W week of the year: Monday-first, 00 to 53.
func weekNumber(t time.Time) int {
	yday := t.YearDay() - 1
	wday := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - wday) / 7
}

// dateVariables builds the fourteen date/time variables for one prefix.
// at returns the reference instant per invocation.
func dateVariables(prefix string, at func(pc *Context) time.Time) []*Handler {
	v := func(suffix string, eval func(t time.Time) string) *Handler {
		return &Handler{
			Name: prefix + suffix,
			Eval: func(pc *Context, _ []string) (string, error) {
				return eval(at(pc)), nil
			},
		}
	}
	return []*Handler{
		v("YEAR", func(t time.Time) string { return strconv.Itoa(t.Year()) }),
		v("MONTH", func(t time.Time) string { return strconv.Itoa(int(t.Month())) }),
		v("MONTH_P", func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) }),
		v("WEEK", func(t time.Time) string { return strconv.Itoa(weekNumber(t)) }),
		v("DAY", func(t time.Time) string { return strconv.Itoa(t.Day()) }),
		v("DAY_P", func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }),
		v("DOW", func(t time.Time) string { return strconv.Itoa((int(t.Weekday())+6)%7 + 1) }),
		v("TIME", func(t time.Time) string { return t.Format("15:04") }),
		v("HOUR", func(t time.Time) string { return strconv.Itoa(t.Hour()) }),
		v("HOUR_P", func(t time.Time) string { return fmt.Sprintf("%02d", t.Hour()) }),
		v("MINUTE", func(t time.Time) string { return strconv.Itoa(t.Minute()) }),
		v("MINUTE_P", func(t time.Time) string { return fmt.Sprintf("%02d", t.Minute()) }),
		v("TIMESTAMP", func(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }),
		v("ISO_DATE", func(t time.Time) string { return t.Format("2006-01-02") }),
	}
}

// revisionTime resolves the revision instant, falling back to now.
func revisionTime(pc *Context) time.Time {
	if pc.Revision != nil {
		return pc.Revision.Date
	}
	return pc.Now
}

func builtinMagicVariables() []*Handler {
	vars := dateVariables("CURRENT_", func(pc *Context) time.Time { return pc.Now })
	vars = append(vars, dateVariables("REVISION_", revisionTime)...)

	str := func(name string, eval func(pc *Context) string) *Handler {
		return &Handler{Name: name, Eval: func(pc *Context, _ []string) (string, error) {
			return eval(pc), nil
		}}
	}
	erring := func(name string, eval func(pc *Context) (string, error)) *Handler {
		return &Handler{Name: name, Eval: func(pc *Context, _ []string) (string, error) {
			return eval(pc)
		}}
	}

	vars = append(vars,
		// Site.
		str("SITE_NAME", func(pc *Context) string { return pc.Cfg.SiteName }),
		str("SERVER_URL", func(pc *Context) string { return pc.Cfg.ServerURL }),
		str("SERVER_NAME", func(pc *Context) string { return pc.Cfg.ServerName }),
		str("WIKI_PATH", func(pc *Context) string { return pc.Cfg.WikiPath }),
		str("WIKI_API_PATH", func(pc *Context) string { return pc.Cfg.WikiAPIPath }),
		str("OTTM_API_PATH", func(pc *Context) string { return pc.Cfg.OTTMAPIPath }),
		str("STATIC_PATH", func(pc *Context) string { return pc.Cfg.StaticPath }),

		// Page.
		str("PAGE_ID", func(pc *Context) string {
			if pc.Page == nil || !pc.Page.Exists {
				return ""
			}
			return strconv.FormatInt(pc.Page.ID, 10)
		}),
		str("PAGE_LANGUAGE", func(pc *Context) string {
			if pc.Page == nil {
				return pc.Cfg.SiteLang
			}
			return pc.Page.ContentLanguage
		}),
		erring("PAGE_PROTECTION_LEVEL", func(pc *Context) (string, error) {
			prot, err := pc.protection()
			if err != nil || prot == nil {
				return "", err
			}
			return prot.ProtectionLevel, nil
		}),
		erring("PAGE_PROTECTION_EXPIRY", func(pc *Context) (string, error) {
			prot, err := pc.protection()
			if err != nil || prot == nil || !prot.EndDate.Valid {
				return "", err
			}
			return prot.EndDate.Time.Format("2006-01-02 15:04"), nil
		}),

		// Revision.
		str("REVISION_ID", func(pc *Context) string {
			if pc.Revision == nil {
				return ""
			}
			return strconv.FormatInt(pc.Revision.ID, 10)
		}),
		str("REVISION_SIZE", func(pc *Context) string {
			if pc.Revision == nil {
				return ""
			}
			return strconv.Itoa(len(pc.Revision.Content))
		}),
		str("REVISION_AUTHOR", func(pc *Context) string { return pc.RevisionAuthor }),

		// Titles, plain and URL-encoded.
		str("FULL_PAGE_TITLE", func(pc *Context) string { return pc.fullTitle() }),
		str("FULL_PAGE_TITLE_U", func(pc *Context) string { return wiki.URLEncodeTitle(pc.fullTitle()) }),
		str("PAGE_TITLE", func(pc *Context) string { return pc.title() }),
		str("PAGE_TITLE_U", func(pc *Context) string { return wiki.URLEncodeTitle(pc.title()) }),
		str("PAGE_BASE_NAME", func(pc *Context) string { return pc.titlePart(wiki.BaseName) }),
		str("PAGE_BASE_NAME_U", func(pc *Context) string { return wiki.URLEncodeTitle(pc.titlePart(wiki.BaseName)) }),
		str("PAGE_PARENT_TITLE", func(pc *Context) string { return pc.titlePart(wiki.ParentTitle) }),
		str("PAGE_PARENT_TITLE_U", func(pc *Context) string { return wiki.URLEncodeTitle(pc.titlePart(wiki.ParentTitle)) }),
		str("PAGE_NAME", func(pc *Context) string { return pc.titlePart(wiki.PageName) }),
		str("PAGE_NAME_U", func(pc *Context) string { return wiki.URLEncodeTitle(pc.titlePart(wiki.PageName)) }),
		str("PAGE_PATH", func(pc *Context) string {
			return pc.Cfg.WikiPath + "/" + wiki.URLEncodeTitle(pc.fullTitle())
		}),
		str("PAGE_URL", func(pc *Context) string {
			return pc.Cfg.ServerURL + pc.Cfg.WikiPath + "/" + wiki.URLEncodeTitle(pc.fullTitle())
		}),

		// Namespace.
		str("NAMESPACE_NAME", func(pc *Context) string {
			if pc.Page == nil {
				return ""
			}
			return pc.Page.Namespace.Name
		}),
		str("NAMESPACE_NAME_U", func(pc *Context) string {
			if pc.Page == nil {
				return ""
			}
			return wiki.URLEncodeTitle(pc.Page.Namespace.Name)
		}),
		str("NAMESPACE_ID", func(pc *Context) string {
			if pc.Page == nil {
				return ""
			}
			return strconv.Itoa(pc.Page.Namespace.ID)
		}),

		// Statistics.
		erring("NUMBER_OF_PAGES", statVar(func(s wiki.SiteStats) int64 { return s.Pages })),
		erring("NUMBER_OF_ARTICLES", statVar(func(s wiki.SiteStats) int64 { return s.Articles })),
		erring("NUMBER_OF_EDITS", statVar(func(s wiki.SiteStats) int64 { return s.Edits })),
		erring("NUMBER_OF_USERS", statVar(func(s wiki.SiteStats) int64 { return s.Users })),
		erring("NUMBER_OF_ACTIVE_USERS", statVar(func(s wiki.SiteStats) int64 { return s.ActiveUsers })),
		erring("NUMBER_OF_FILES", func(pc *Context) (string, error) {
			n, err := pc.Store.CountPagesInNamespace(pc.Ctx, wiki.NSFile)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		}),
	)
	return vars
}

// statVar builds a site-statistics variable from a field selector.
func statVar(sel func(wiki.SiteStats) int64) func(pc *Context) (string, error) {
	return func(pc *Context) (string, error) {
		stats, err := pc.Store.Stats(pc.Ctx)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(sel(stats), 10), nil
	}
}

func (pc *Context) fullTitle() string {
	if pc.Page == nil {
		return ""
	}
	return pc.Page.FullTitle()
}

func (pc *Context) title() string {
	if pc.Page == nil {
		return ""
	}
	return pc.Page.Title
}

func (pc *Context) titlePart(f func(*wiki.Namespace, string) string) string {
	if pc.Page == nil {
		return ""
	}
	return f(pc.Page.Namespace, pc.Page.Title)
}

func (pc *Context) protection() (*db.PageProtection, error) {
	if pc.Page == nil {
		return nil, nil
	}
	return pc.Store.ActiveProtection(pc.Ctx, pc.Page.Namespace.ID, pc.Page.Title)
}
