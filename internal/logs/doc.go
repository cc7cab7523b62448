// Package logs reads the JSON log files racefeed writes: the per-run daemon
// log and the per-attempt logs under attempts/<platform>/.
//
// Tail returns the last N matching records or follows a file from an offset
// with bounded memory. Filter narrows records to one platform, scraped event,
// correlation id or minimum level, so an operator can pull a single attempt's
// story out of a busy daemon log.
package logs
