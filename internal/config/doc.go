// Package config loads, normalizes, and validates racefeed configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RACEFEED_NTFY_TOPIC. The Config type centralizes every knob the daemon and
// CLI need, including per-platform request pacing and attempt budgets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
