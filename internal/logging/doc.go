// Package logging assembles structured slog loggers and formatting helpers used
// across racefeed services.
//
// It owns the configurable console/JSON handlers, fans output out to stdout and
// the daemon log file, and exposes context-aware helpers so scheduler and
// adapter code can automatically tag log lines with platform ids, scraped event
// ids, attempt ids and correlation ids. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
