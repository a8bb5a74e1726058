package emlx

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// buildEmlx constructs a well-formed .emlx buffer: "<N>\n" followed by N
// bytes of RFC 5322 message.
func buildEmlx(message string) []byte {
	return []byte(fmt.Sprintf("%d\n%s", len(message), message))
}

func TestParseBytesMissingByteCountLine(t *testing.T) {
	_, err := ParseBytes([]byte("not a byte count at all, no newline"))
	if err == nil {
		t.Fatal("expected error")
	}
	var ve *vaulterrors.Error
	if !asVaultError(err, &ve) || ve.Kind != vaulterrors.KindInvalidFormat {
		t.Fatalf("expected invalidFormat, got %v", err)
	}
}

func TestParseBytesByteCountExceedsAvailable(t *testing.T) {
	msg := "Subject: Hi\r\n\r\nBody"
	// Declare far more bytes than actually follow.
	buf := []byte(fmt.Sprintf("%d\n%s", len(msg)+1000, msg))
	parsed, err := ParseBytes(buf)
	if err != nil {
		t.Fatalf("expected tolerant parse, got error %v", err)
	}
	if parsed.BodyText != "Body" {
		t.Fatalf("expected body parsed up to file end, got %q", parsed.BodyText)
	}
}

func TestParseBytesFoldedHeaders(t *testing.T) {
	msg := "Subject: Hello\r\n World\r\nFrom: a@example.com\r\n\r\nBody text"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Subject != "Hello World" {
		t.Fatalf("expected folded subject joined with single space, got %q", parsed.Subject)
	}
}

// S2 — emlx round-trip with RFC 2047 encoded words (see spec.md §8 S2).
func TestParseBytesEncodedWordsRoundTrip(t *testing.T) {
	msg := "From: =?UTF-8?B?SsO8cmdlbiA=?= " +
		"=?UTF-8?B?TcO8bGxlcg==?= <jurgen@example.de>\r\n" +
		"Subject: =?UTF-8?Q?Re:_Caf=C3=A9_meeting?=\r\n" +
		"\r\nBody"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.From) != 1 {
		t.Fatalf("expected 1 From address, got %d", len(parsed.From))
	}
	if parsed.From[0].Name != "Jürgen Müller" {
		t.Fatalf("got name %q", parsed.From[0].Name)
	}
	if parsed.From[0].Email != "jurgen@example.de" {
		t.Fatalf("got email %q", parsed.From[0].Email)
	}
	if parsed.Subject != "Re: Café meeting" {
		t.Fatalf("got subject %q", parsed.Subject)
	}
}

// S3 — multipart/alternative with both text and html parts.
func TestParseBytesMultipartAlternative(t *testing.T) {
	boundary := "BOUNDARY123"
	msg := "Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"Plain body\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/html\r\n\r\n" +
		"<p>HTML body</p>\r\n" +
		"--" + boundary + "--\r\n"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(parsed.BodyText, "Plain body") {
		t.Fatalf("expected plain body, got %q", parsed.BodyText)
	}
	if !strings.Contains(parsed.BodyHTML, "HTML body") {
		t.Fatalf("expected html body, got %q", parsed.BodyHTML)
	}
	if len(parsed.Attachments) != 0 {
		t.Fatalf("expected no attachments, got %d", len(parsed.Attachments))
	}
}

func TestParseBytesMultipartMixedWithAttachment(t *testing.T) {
	boundary := "MIXED1"
	msg := "Content-Type: multipart/mixed; boundary=" + boundary + "\r\n\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"Hello there\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		"aGVsbG8=\r\n" + // "hello"
		"--" + boundary + "--\r\n"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(parsed.BodyText, "Hello there") {
		t.Fatalf("got body %q", parsed.BodyText)
	}
	if len(parsed.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(parsed.Attachments))
	}
	att := parsed.Attachments[0]
	if att.Filename != "report.pdf" || att.MimeType != "application/pdf" || att.IsInline {
		t.Fatalf("got %#v", att)
	}
	if string(att.Data) != "hello" {
		t.Fatalf("expected decoded base64 attachment data, got %q", att.Data)
	}
}

func TestParseBytesInlineDisposition(t *testing.T) {
	boundary := "INLINE1"
	msg := "Content-Type: multipart/mixed; boundary=" + boundary + "\r\n\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"Body\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-Disposition: inline; filename=\"logo.png\"\r\n\r\n" +
		"binarydata\r\n" +
		"--" + boundary + "--\r\n"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Attachments) != 1 || !parsed.Attachments[0].IsInline {
		t.Fatalf("expected one inline attachment, got %#v", parsed.Attachments)
	}
}

func TestParseBytesThreadingHeaders(t *testing.T) {
	msg := "Message-ID: <mid@x>\r\nIn-Reply-To: <parent@x>\r\nReferences: <root@x> <parent@x>\r\n\r\nBody"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MessageID != "<mid@x>" || parsed.InReplyTo != "<parent@x>" {
		t.Fatalf("got %#v", parsed)
	}
	if len(parsed.References) != 2 || parsed.References[0] != "<root@x>" {
		t.Fatalf("got references %#v", parsed.References)
	}
}

func TestParseBytesUnparseableDateKeepsRaw(t *testing.T) {
	msg := "Date: not a real date\r\n\r\nBody"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Date != nil {
		t.Fatalf("expected nil Date for unparseable header")
	}
	if parsed.DateRaw != "not a real date" {
		t.Fatalf("expected raw date preserved, got %q", parsed.DateRaw)
	}
}

func TestParseBytesIdempotentReparse(t *testing.T) {
	// Testable property §8 item 1: re-serializing headers and re-parsing
	// yields equal structured fields.
	msg := "From: Jane Doe <jane@example.com>\r\nSubject: Re: Test\r\nMessage-ID: <a@x>\r\n\r\nBody"
	first, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var reserialized strings.Builder
	for _, h := range first.Headers {
		reserialized.WriteString(h.Name + ": " + h.Value + "\r\n")
	}
	reserialized.WriteString("\r\n" + first.BodyText)
	second, err := ParseBytes(buildEmlx(reserialized.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Subject != second.Subject || first.MessageID != second.MessageID {
		t.Fatalf("expected idempotent parse")
	}
	if len(first.From) != 1 || len(second.From) != 1 || first.From[0] != second.From[0] {
		t.Fatalf("expected idempotent From parse")
	}
}

// Body text declared as ISO-8859-1 must be converted to UTF-8, not stored
// as raw Latin-1 bytes.
func TestParseBytesDeclaredCharsetIsConverted(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("Café meeting")
	if err != nil {
		t.Fatalf("encoding fixture body: %v", err)
	}
	msg := "Content-Type: text/plain; charset=iso-8859-1\r\n\r\n" + latin1
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(parsed.BodyText, "Café meeting") {
		t.Fatalf("expected decoded body to contain %q, got %q", "Café meeting", parsed.BodyText)
	}
}

// A multipart part with no declared charset but non-ASCII bytes falls back
// to chardet sniffing rather than being stored as raw, invalid-UTF-8 bytes.
func TestParseBytesUndeclaredCharsetIsSniffed(t *testing.T) {
	boundary := "CHARSET1"
	latin1, err := charmap.ISO8859_1.NewEncoder().String(strings.Repeat("Café résumé naïve ", 4))
	if err != nil {
		t.Fatalf("encoding fixture body: %v", err)
	}
	msg := "Content-Type: multipart/mixed; boundary=" + boundary + "\r\n\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		latin1 + "\r\n" +
		"--" + boundary + "--\r\n"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(parsed.BodyText) {
		t.Fatalf("expected sniffed charset to yield valid UTF-8, got %q", parsed.BodyText)
	}
}

// Attachment bytes must never go through charset conversion, even though
// textual parts in the same message do.
func TestParseBytesAttachmentBytesUnaffectedByCharsetDecoding(t *testing.T) {
	boundary := "MIXED2"
	msg := "Content-Type: multipart/mixed; boundary=" + boundary + "\r\n\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"data.bin\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		"gA==\r\n" + // single byte 0x80, invalid UTF-8 and invalid ASCII
		"--" + boundary + "--\r\n"
	parsed, err := ParseBytes(buildEmlx(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(parsed.Attachments))
	}
	if !bytes.Equal(parsed.Attachments[0].Data, []byte{0x80}) {
		t.Fatalf("expected raw attachment byte 0x80 untouched, got %v", parsed.Attachments[0].Data)
	}
}

func asVaultError(err error, target **vaulterrors.Error) bool {
	ve, ok := err.(*vaulterrors.Error)
	if !ok {
		return false
	}
	*target = ve
	return true
}
