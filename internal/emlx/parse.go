package emlx

import (
	"bytes"
	"mime"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"github.com/dwrekofc/swiftea/internal/emlxheader"
	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// ParseFile reads and parses a .emlx file from disk.
func ParseFile(path string) (*Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterrors.Wrap(vaulterrors.KindFileNotFound, err, "emlx file %q", path)
		}
		return nil, vaulterrors.Wrap(vaulterrors.KindFileNotFound, err, "reading emlx file %q", path)
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory .emlx buffer (spec.md §4.2 steps 1-7).
func ParseBytes(data []byte) (*Message, error) {
	countEnd := bytes.IndexByte(data, '\n')
	if countEnd < 0 {
		return nil, vaulterrors.New(vaulterrors.KindInvalidFormat, "missing byte-count line")
	}
	countLine := strings.TrimRight(string(data[:countEnd]), "\r")
	declared, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindInvalidFormat, err, "byte-count line %q is not an integer", countLine)
	}
	if declared < 0 {
		return nil, vaulterrors.New(vaulterrors.KindInvalidFormat, "byte-count %d is negative", declared)
	}

	rest := data[countEnd+1:]
	// Tolerant behavior when the declared count disagrees with what's
	// actually available: parse up to min(declared, len(rest)) rather than
	// failing (spec.md §9 open question, resolved explicitly here).
	n := declared
	if n > len(rest) {
		n = len(rest)
	}
	block := rest[:n]

	msg := &Message{
		Raw:           block,
		BytesConsumed: countEnd + 1 + n,
	}

	headerBytes, bodyBytes := splitHeadersAndBody(block)
	msg.Headers = parseHeaderBlock(headerBytes)

	if err := populateStructuredHeaders(msg); err != nil {
		return nil, err
	}

	if err := parseBody(msg, bodyBytes); err != nil {
		return nil, err
	}

	if trailer := rest[n:]; len(trailer) > 0 {
		if plistMap, plistDate, ok := parseApplePlist(trailer); ok {
			msg.ApplePlist = plistMap
			msg.PlistDate = plistDate
		}
	}

	return msg, nil
}

// splitHeadersAndBody finds the first blank line (CRLFCRLF or LFLF) and
// splits the message block into headers and body, preserving CRLF
// conventions in the body for later MIME boundary matching.
func splitHeadersAndBody(block []byte) (headers, body []byte) {
	if idx := bytes.Index(block, []byte("\r\n\r\n")); idx >= 0 {
		return block[:idx], block[idx+4:]
	}
	if idx := bytes.Index(block, []byte("\n\n")); idx >= 0 {
		return block[:idx], block[idx+2:]
	}
	return block, nil
}

// parseHeaderBlock splits a raw header block into name/value pairs,
// unfolding continuation lines (a line starting with space or tab
// continues the previous header's value, joined with a single space) per
// spec.md §4.2 step 3.
func parseHeaderBlock(headerBytes []byte) []HeaderField {
	text := strings.ReplaceAll(string(headerBytes), "\r\n", "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	var fields []HeaderField
	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1].Value += " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		fields = append(fields, HeaderField{Name: name, Value: value})
	}
	return fields
}

func populateStructuredHeaders(msg *Message) error {
	messageIDHeader, _ := msg.Header("Message-ID")
	inReplyToHeader, _ := msg.Header("In-Reply-To")
	referencesHeader, _ := msg.Header("References")
	threading := emlxheader.ParseThreading(messageIDHeader, inReplyToHeader, referencesHeader)
	msg.MessageID = threading.MessageID
	msg.InReplyTo = threading.InReplyTo
	msg.References = threading.References

	if subj, ok := msg.Header("Subject"); ok {
		msg.Subject = emlxheader.DecodeEncodedWords(subj)
	}

	if v, ok := msg.Header("From"); ok {
		msg.From = emlxheader.ParseAddressList(v)
	}
	if v, ok := msg.Header("To"); ok {
		msg.To = emlxheader.ParseAddressList(v)
	}
	if v, ok := msg.Header("Cc"); ok {
		msg.Cc = emlxheader.ParseAddressList(v)
	}
	if v, ok := msg.Header("Bcc"); ok {
		msg.Bcc = emlxheader.ParseAddressList(v)
	}

	if v, ok := msg.Header("Date"); ok {
		msg.DateRaw = v
		if t, err := mail.ParseDate(v); err == nil {
			msg.Date = &t
		}
		// On parse failure, Date stays nil and DateRaw keeps the raw text,
		// per spec.md §4.2 step 5.
	}

	if v, ok := msg.Header("Content-Type"); ok {
		mainType, params, err := mime.ParseMediaType(v)
		if err != nil {
			// Malformed Content-Type: fall back to treating the whole
			// header as the main type with no params, rather than failing
			// the entire parse over one header.
			mainType = strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
			params = nil
		}
		msg.ContentType = mainType
		msg.ContentTypeParams = params
	} else {
		msg.ContentType = "text/plain"
	}

	return nil
}
