package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FileToken turns a platform, event or correlation id into a readable file
// name fragment: ASCII letters lowercased, digits, '-' and '_' kept, anything
// else replaced by '_'. Distinct ids can share a token ("2024.1", "2024_1");
// use KeyToken where the token must identify the id.
func FileToken(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// KeyToken is FileToken made injective: ids that are not already their own
// file token get a suffix derived from a SHA-256 of the raw id, so case and
// punctuation variants land in different directories.
func KeyToken(value string) string {
	token := FileToken(value)
	if token == value {
		return token
	}
	sum := sha256.Sum256([]byte(value))
	return token + "." + hex.EncodeToString(sum[:6])
}
