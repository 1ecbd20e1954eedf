package scraper

import (
	"postscraper/pkg/config"
	"postscraper/pkg/models"
)

// RequestFromConfig builds the request described by the search and scrape
// sections of cfg.
func RequestFromConfig(cfg *config.Config) models.Request {
	return models.Request{
		Mode:           models.Mode(cfg.Search.Mode),
		Keywords:       cfg.Search.Keywords,
		Composition:    cfg.Search.Composition,
		BatchSize:      cfg.Search.BatchSize,
		ProfileURLs:    cfg.Search.ProfileURLs,
		PostURLs:       cfg.Search.PostURLs,
		SortByRecent:   cfg.Search.SortByRecent,
		MaxPosts:       cfg.Scrape.MaxPosts,
		ScrollAttempts: cfg.Scrape.ScrollAttempts,
	}
}

// withDefaults fills unset request limits from cfg. A request naming no
// mode and no inputs is replaced by the configured one.
func withDefaults(req models.Request, cfg *config.Config) models.Request {
	if req.Mode == "" && len(req.Keywords) == 0 && len(req.ProfileURLs) == 0 && len(req.PostURLs) == 0 {
		base := RequestFromConfig(cfg)
		base.DryRun, base.Resume = req.DryRun, req.Resume
		return base
	}
	if req.Mode == "" {
		req.Mode = models.Mode(cfg.Search.Mode)
	}
	if req.Composition == "" {
		req.Composition = cfg.Search.Composition
	}
	if req.BatchSize <= 0 {
		req.BatchSize = cfg.Search.BatchSize
	}
	if req.MaxPosts <= 0 {
		req.MaxPosts = cfg.Scrape.MaxPosts
	}
	if req.ScrollAttempts <= 0 {
		req.ScrollAttempts = cfg.Scrape.ScrollAttempts
	}
	return req
}
