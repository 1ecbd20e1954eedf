// Package logger provides the structured logging facade used across the
// scraper. It wraps zerolog and adds a nop logger and a capturing
// TestLogger for unit tests.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Target finished", map[string]interface{}{"records": n})
package logger
