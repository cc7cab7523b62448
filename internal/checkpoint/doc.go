// Package checkpoint persists downloaded platform responses and in-progress
// standard forms on the local filesystem so an interrupted attempt resumes
// without re-fetching or re-parsing.
//
// Two namespaces live under one Key (platform, series, event and optionally
// runner): the raw namespace holds response bodies addressed by a SHA-256 of
// the request, and the form namespace holds the single evolving Standard Form
// document. Raw entries are immutable once written; responses that look like
// transient platform errors are never written so the next attempt fetches
// them again.
package checkpoint
