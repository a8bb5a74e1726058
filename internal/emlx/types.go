// Package emlx parses Apple Mail's on-disk .emlx format: a decimal
// byte-count line, followed by that many bytes of an RFC 5322 message
// (headers + CRLF + MIME body), optionally followed by an Apple property
// list carrying Mail-specific metadata (flags, mailbox, date received).
//
// Parsing never touches a database; it is pure byte-buffer-in,
// structured-message-out, so the on-demand body/attachment resolution
// described in spec.md §2 (EmlxParser, invoked via EnvelopeDiscovery path
// resolution) can run outside any transaction.
package emlx

import (
	"time"

	"github.com/dwrekofc/swiftea/internal/emlxheader"
)

// HeaderField is one raw header line after unfolding continuation lines.
// Name is preserved as written (case is not normalized in storage; lookups
// are case-insensitive via Message.Header).
type HeaderField struct {
	Name  string
	Value string
}

// AttachmentInfo describes one non-top-level-text MIME part, per spec.md
// §4.2 step 6.
type AttachmentInfo struct {
	Filename  string
	MimeType  string
	Size      int
	ContentID string
	IsInline  bool
	Data      []byte
}

// Message is the fully parsed structured representation of one .emlx file.
type Message struct {
	// Raw is the exact byte slice consumed as the RFC 5322 message block
	// (after the byte-count line, truncated to min(declaredCount, len(rest))).
	Raw           []byte
	BytesConsumed int

	Headers []HeaderField

	MessageID  string // raw, angle brackets preserved
	InReplyTo  string // raw, angle brackets preserved
	References []string

	From []emlxheader.Address
	To   []emlxheader.Address
	Cc   []emlxheader.Address
	Bcc  []emlxheader.Address

	Subject string // RFC-2047-decoded

	DateRaw string
	Date    *time.Time // nil if Date header absent or unparseable

	ContentType       string
	ContentTypeParams map[string]string

	BodyText string
	BodyHTML string
	Attachments []AttachmentInfo

	// ApplePlist holds the decoded trailing property list, when present and
	// well-formed. Values are preserved as native Go types (string, bool,
	// int64, float64, []byte, time.Time) as howett.net/plist decodes them.
	ApplePlist map[string]any

	// PlistDate is convenience access to the plist's date-received field,
	// or date-last-viewed, then date-sent, when date-received is absent
	// (zero if none is present), used as a fallback ingestion date by callers when
	// the RFC 5322 Date header is missing or unparseable.
	PlistDate time.Time
}

// Header returns the joined value of the first header matching name
// case-insensitively, and whether it was present.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if equalFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HeaderAll returns every header value matching name case-insensitively, in
// file order (e.g. multiple Received headers).
func (m *Message) HeaderAll(name string) []string {
	var out []string
	for _, h := range m.Headers {
		if equalFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
