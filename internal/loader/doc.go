// Package loader replaces the auto-loaded results of canonical races with
// freshly scraped ones.
//
// Before deleting a race's previous rows the loader remembers which runner
// and registered user every row was linked to, keyed by last name, first
// name, finish status and numeric result. Newly inserted rows with the same
// key take those links back, one row per remembered link, so re-scraping a
// race never severs a claim a person made on their result.
package loader
