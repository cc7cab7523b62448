// Package resolver attaches Standard Form documents to canonical events,
// races and runners.
//
// Race matching groups races by exact distance length and matches precise
// names within a group. Runner resolution looks runners up by their platform
// ids, merges distinct runners that turn out to share an identity and never
// overwrites a non-empty canonical field. Merges and field conflicts are
// recorded as warnings rather than errors so a wrong merge is auditable
// without blocking ingestion.
package resolver
