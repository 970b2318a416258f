package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/parser"
	"github.com/sa/ottmwiki/internal/storage"
	"github.com/sa/ottmwiki/internal/wiki"
)

// Jobs wires the maintenance tasks to the repository, parser and mirror.
type Jobs struct {
	Cfg    *config.Config
	Svc    *wiki.Service
	Parser *parser.Parser
	Mirror *storage.Mirror
	Logger *slog.Logger
}

// RegisterAll adds every maintenance job to the scheduler.
func (j *Jobs) RegisterAll(s *Scheduler) {
	s.Register(Job{
		Name:        "refresh_page_caches",
		Description: "Re-parse pages whose cached HTML has expired.",
		Interval:    10 * time.Minute,
		Fn:          j.refreshPageCaches,
	})
	s.Register(Job{
		Name:        "delete_expired_page_protections",
		Description: "Delete page protections past their end date.",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := j.Svc.Queries().DeleteExpiredProtections(ctx, time.Now())
			j.logExpiry("page protections", n, err)
			return err
		},
	})
	s.Register(Job{
		Name:        "delete_expired_page_follows",
		Description: "Delete follow statuses past their end date.",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := j.Svc.Queries().DeleteExpiredFollows(ctx, time.Now())
			j.logExpiry("page follows", n, err)
			return err
		},
	})
	s.Register(Job{
		Name:        "delete_expired_user_blocks",
		Description: "Delete user blocks past their end date.",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := j.Svc.Queries().DeleteExpiredUserBlocks(ctx, time.Now())
			j.logExpiry("user blocks", n, err)
			return err
		},
	})
	s.Register(Job{
		Name:        "delete_expired_ip_blocks",
		Description: "Delete IP blocks past their end date.",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := j.Svc.Queries().DeleteExpiredIPBlocks(ctx, time.Now())
			j.logExpiry("IP blocks", n, err)
			return err
		},
	})
	if j.Mirror != nil {
		s.Register(Job{
			Name:        "mirror_pages_to_git",
			Description: "Sync the latest revision of every page into the git mirror.",
			Interval:    time.Hour,
			Fn:          j.mirrorPagesToGit,
		})
	}
}

func (j *Jobs) logExpiry(what string, n int64, err error) {
	if err == nil && n > 0 {
		j.Logger.Info("deleted expired rows", "what", what, "count", n)
	}
}

// refreshPageCaches eagerly re-parses every page whose cache expired.
func (j *Jobs) refreshPageCaches(ctx context.Context) error {
	pages, err := j.Svc.Queries().ListExpiredCachePages(ctx, time.Now())
	if err != nil {
		return err
	}
	var failed int
	for _, row := range pages {
		if err := j.refreshOne(ctx, row.ID); err != nil {
			failed++
			j.Logger.Warn("cache refresh failed", "page_id", row.ID, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cache refreshes failed", failed, len(pages))
	}
	return nil
}

func (j *Jobs) refreshOne(ctx context.Context, pageID int64) error {
	page, err := j.Svc.GetByID(ctx, pageID)
	if err != nil {
		return err
	}
	rev, err := j.Svc.LatestRevision(ctx, page)
	if errors.Is(err, wiki.ErrNoRevisions) {
		return nil
	}
	if err != nil {
		return err
	}

	pc := &parser.Context{
		Ctx:        ctx,
		Cfg:        j.Cfg,
		Store:      j.Svc,
		Namespaces: j.Svc.Namespaces(),
		Page:       page,
		Revision:   &rev,
		Now:        time.Now(),
	}
	if author, err := j.Svc.Queries().GetUserByID(ctx, rev.AuthorID); err == nil {
		pc.RevisionAuthor = author.Name
	}
	result, err := j.Parser.Parse(pc, rev.Content)
	if err != nil {
		return err
	}
	return j.Svc.StoreParseCache(ctx, page.ID, wiki.CacheParams{
		RevisionID:      rev.ID,
		HTML:            result.HTML,
		ParseDurationMs: result.Metadata.ParseDurationMs,
		ParseDate:       result.Metadata.ParseDate,
		SizeBefore:      result.Metadata.SizeBefore,
		SizeAfter:       result.Metadata.SizeAfter,
	})
}

// mirrorPagesToGit writes the latest revision of every non-deleted page
// into the git mirror and commits the batch.
func (j *Jobs) mirrorPagesToGit(ctx context.Context) error {
	pages, err := j.Svc.Queries().ListPages(ctx)
	if err != nil {
		return err
	}
	for _, row := range pages {
		if row.Deleted {
			continue
		}
		page, err := j.Svc.GetByID(ctx, row.ID)
		if err != nil {
			return err
		}
		rev, err := j.Svc.LatestRevision(ctx, page)
		if errors.Is(err, wiki.ErrNoRevisions) {
			continue
		}
		if err != nil {
			return err
		}
		filename := wiki.URLEncodeTitle(page.FullTitle()) + ".wiki"
		if err := j.Mirror.WritePage(filename, rev.Content); err != nil {
			return err
		}
	}
	committed, err := j.Mirror.Commit("Sync wiki content")
	if err != nil {
		return err
	}
	if committed {
		j.Logger.Info("content mirror updated", "path", j.Mirror.Path())
	}
	return nil
}
