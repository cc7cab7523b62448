// Package textutil provides text processing utilities for name matching,
// event-name similarity and filesystem-safe tokens.
//
// The primary use cases are:
//   - Folding runner and race names so that case, diacritics and spacing
//     differences between platforms do not defeat exact matching
//   - Computing cosine similarity between event-name fingerprints
//   - Turning platform and remote ids into safe path segments
package textutil
