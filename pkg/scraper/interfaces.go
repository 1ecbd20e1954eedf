package scraper

import (
	"context"

	"postscraper/pkg/models"
	"postscraper/pkg/session"
)

// SessionSource hands out worker sessions.
type SessionSource interface {
	Acquire(ctx context.Context, workerID int) (*session.Session, error)
	MaxWorkers(requested int) int
}

// Reporter receives progress events. Calls may come from several workers.
type Reporter interface {
	TargetStarted(workerID int, target models.Target)
	TargetFinished(result models.TargetResult)
}

type nopReporter struct{}

func (nopReporter) TargetStarted(int, models.Target) {}
func (nopReporter) TargetFinished(models.TargetResult) {}
