// Package daemon owns the long-running racefeed process lifecycle.
//
// It holds the single-instance lock for a data directory and starts and stops
// the scheduler manager. Per-platform work lives in the workflow and adapter
// packages; the daemon only coordinates startup, shutdown and status.
package daemon
