// Package scraper runs a complete scrape: it plans targets, drives each one
// through the feed loader and field extractor on a bounded worker pool, feeds
// the records through the pipeline and flushes them to every export format.
//
// Architecture:
//
// A Runner owns the long-lived pieces (session source, loader, extractor,
// enrichment client). Each call to Run creates the run-scoped state: a record
// pipeline, a checkpoint and a summary. Nothing is shared between runs, so a
// trigger server may execute runs one after another on the same Runner.
//
// Workers:
//
// Every worker acquires one session when it takes its first target and keeps
// it until the pool stops. A session-level failure (login wall, challenge)
// stops that worker; target-level failures only mark the target partial.
//
// Output:
//
// Records collected before a failure or cancellation are always exported.
// With Resume set, targets recorded in the run's checkpoint are skipped and
// the records of the previous export are carried over.
package scraper
