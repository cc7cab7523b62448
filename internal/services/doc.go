// Package services defines shared utilities consumed by the scheduler, the
// platform adapters and the resolver.
//
// Key responsibilities:
//   - Context helpers that stamp platform ids, scraped event ids, attempt ids,
//     pipeline steps and correlation identifiers for logging.
//   - The classified Error value whose Kind (fatal, retry, retry_delayed,
//     timeout) drives every queue transition through Policy.
//
// Adapters return *Error values instead of inventing their own failure types
// so that retry handling stays uniform across platforms.
package services
