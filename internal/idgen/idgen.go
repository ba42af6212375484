// Package idgen generates short opaque identifiers for persisted records.
//
// Projects, tasks and drafts get content-derived base36 slugs (prefix-xxxxxx).
// Base36 (0-9, a-z) gives better information density than hex at the same
// length. Collisions are handled by the caller retrying with a higher nonce.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// Prefixes for the entity kinds that use slug IDs.
const (
	PrefixProject = "prj"
	PrefixTask    = "tsk"
	PrefixDraft   = "drf"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// slugLength is the number of base36 characters after the prefix.
const slugLength = 6

// EncodeBase36 converts a byte slice to a base36 string of the given length,
// zero-padded on the left and truncated to the least significant digits.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewSlug creates a hash-based ID of the form "<prefix>-<base36>".
// The nonce disambiguates hash collisions: callers that detect an existing
// row with the generated ID retry with nonce+1.
func NewSlug(prefix string, timestamp int64, nonce int, parts ...string) string {
	content := fmt.Sprintf("%s|%d|%d", strings.Join(parts, "|"), timestamp, nonce)
	hash := sha256.Sum256([]byte(content))
	// 4 bytes = 32 bits, comfortably covered by 6 base36 chars.
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:4], slugLength))
}
