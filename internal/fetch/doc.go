// Package fetch is the HTTP client every platform adapter talks through.
//
// A Client consults the checkpoint raw namespace before touching the
// network, spaces successive requests to the same platform by a minimum
// interval, retries transient failures in place with quadratic backoff and
// converts the final outcome into a classified services.Error: throttling
// becomes retry_delayed, exhausted transient failures become retry, and
// unexpected statuses are fatal. Bodies are decoded to UTF-8 from whatever
// charset the platform declares.
package fetch
