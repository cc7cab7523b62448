// Package queue persists scraped events and their download attempts in SQLite
// and exposes the transitions the scheduler drives them through.
//
// A scraped event moves between not_started, in_progress, success and error.
// Every execution is recorded as a download attempt; attempts are retained for
// audit. The schema carries a partial unique index so the database itself
// refuses a second unfinished attempt on the same platform, which keeps the
// one-in-flight rule intact even when several scheduler processes share the
// file.
//
// Schema changes bump the version in schema.go; operators clear the database
// to adopt the new schema.
package queue
