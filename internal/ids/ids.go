// Package ids derives stable 32-character lowercase-hex identifiers from the
// strongest available natural key on a mail message or calendar event, and
// reconciles identity drift when an upstream source mutates its own ids
// across sync runs.
package ids

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// hash128 produces a deterministic 128-bit digest of s as two independent
// FNV-1a 64-bit passes (seeded differently), rendered as 32 lowercase hex
// characters. FNV-1a is allocation-free and stable across processes and Go
// versions, which is all spec.md §4.1 requires ("any stable 128-bit
// function"); no cryptographic property is needed since these ids are never
// used for authentication.
func hash128(s string) string {
	h1 := fnv.New64a()
	h1.Write([]byte(s))
	sum1 := h1.Sum64()

	h2 := fnv.New64a()
	h2.Write([]byte{0x5a}) // domain-separate the second pass from the first
	h2.Write([]byte(s))
	sum2 := h2.Sum64()

	var b strings.Builder
	b.Grow(32)
	b.WriteString(formatHex16(sum1))
	b.WriteString(formatHex16(sum2))
	return b.String()
}

func formatHex16(v uint64) string {
	s := strconv.FormatUint(v, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}

// RandomID returns a freshly generated random UUID rendered as 32 hex
// characters with no dashes, for callers whose last-resort fallback must be
// genuinely unique rather than derived from a (possibly empty) natural key.
func RandomID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// normalizeMessageID trims surrounding whitespace and angle brackets from an
// RFC 5322 Message-ID token and lowercases the result, for use as a hash key.
func normalizeMessageID(messageID string) string {
	s := strings.TrimSpace(messageID)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.ToLower(strings.TrimSpace(s))
}

// GenerateMessageID derives the 32-hex id for a mail message, following the
// priority order in spec.md §4.1:
//  1. message_id (non-blank after trim/bracket-strip)
//  2. subject/sender/date header tuple
//  3. apple_rowid alone
//  4. a fresh random id
func GenerateMessageID(messageID, subject, sender *string, date *int64, appleRowID *int64) string {
	if messageID != nil {
		normalized := normalizeMessageID(*messageID)
		if normalized != "" {
			return hash128("msgid:" + normalized)
		}
	}

	if (subject != nil && strings.TrimSpace(*subject) != "") ||
		(sender != nil && strings.TrimSpace(*sender) != "") ||
		date != nil {
		var dateComponent int64
		if date != nil {
			dateComponent = *date
		}
		var senderLower string
		if sender != nil {
			senderLower = strings.ToLower(*sender)
		}
		var subjectValue string
		if subject != nil {
			subjectValue = *subject
		}
		var rowIDComponent string
		if appleRowID != nil {
			rowIDComponent = strconv.FormatInt(*appleRowID, 10)
		}
		key := "hdr:" + subjectValue + "\x1f" + senderLower + "\x1f" +
			strconv.FormatInt(dateComponent, 10) + "\x1f" + rowIDComponent
		return hash128(key)
	}

	if appleRowID != nil {
		return hash128("row:" + strconv.FormatInt(*appleRowID, 10))
	}

	return RandomID()
}

// HashKey derives a stable 32-hex id from an arbitrary ordered tuple of
// string components, joined with the same unit-separator convention as
// GenerateMessageID's header-tuple branch. Used wherever a canonical table
// needs an id derived from a natural key that isn't a mail message (e.g.
// MailDatabase's mailbox ids, derived from the upstream mailbox url).
func HashKey(parts ...string) string {
	return hash128(strings.Join(parts, "\x1f"))
}

// IsValid reports whether s is exactly 32 lowercase hex characters.
func IsValid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
