package emlx

import (
	"bytes"
	"encoding/base64"
	"mime"
	"mime/quotedprintable"
	"strings"

	"github.com/dwrekofc/swiftea/internal/emlxheader"
)

// parseBody dispatches on the top-level Content-Type (spec.md §4.2 step 6).
func parseBody(msg *Message, body []byte) error {
	switch {
	case strings.HasPrefix(msg.ContentType, "multipart/"):
		boundary := msg.ContentTypeParams["boundary"]
		if boundary == "" {
			// No boundary: nothing to split on; treat as opaque text.
			msg.BodyText = decodeText(body, msg.ContentTypeParams["charset"])
			return nil
		}
		parts := splitMultipart(body, boundary)
		isAlternative := msg.ContentType == "multipart/alternative"
		for _, raw := range parts {
			part := parseMIMEPart(raw)
			applyPart(msg, part, isAlternative)
		}
		return nil

	case msg.ContentType == "text/html":
		decoded := decodeTransferEncoding(body, headerValue(msg.Headers, "Content-Transfer-Encoding"))
		msg.BodyHTML = decodeText(decoded, msg.ContentTypeParams["charset"])
		return nil

	default: // text/plain and anything else top-level
		decoded := decodeTransferEncoding(body, headerValue(msg.Headers, "Content-Transfer-Encoding"))
		msg.BodyText = decodeText(decoded, msg.ContentTypeParams["charset"])
		return nil
	}
}

// decodeText converts transfer-decoded textual body bytes to UTF-8 using the
// part's declared charset param, falling back to chardet sniffing (spec.md
// §4.2 expansion: "charset conversion ... of headers/bodies declared in a
// non-UTF-8 charset") when charset is absent or not one DecodeCharset
// recognizes. Never applied to non-textual parts: attachment bytes must
// reach AttachmentInfo.Data untouched.
func decodeText(raw []byte, charset string) string {
	if charset == "" || !emlxheader.IsRecognizedCharset(charset) {
		if detected := emlxheader.DetectCharset(raw); detected != "" {
			charset = detected
		}
	}
	decoded, err := emlxheader.DecodeCharset(charset, raw)
	if err != nil {
		return string(raw)
	}
	return decoded
}

// mimePart is one decoded part of a (possibly nested) multipart body.
type mimePart struct {
	contentType string
	params      map[string]string
	disposition string // "attachment", "inline", or ""
	filename    string
	contentID   string
	decoded     []byte
	isMultipart bool
	children    []mimePart
}

func headerValue(headers []HeaderField, name string) string {
	for _, h := range headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// splitMultipart splits body at lines equal to "--boundary", stopping at
// the terminator "--boundary--" (spec.md §4.2 step 6).
func splitMultipart(body []byte, boundary string) [][]byte {
	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	delim := "--" + boundary
	lines := strings.Split(text, "\n")

	var parts [][]byte
	var cur strings.Builder
	inPart := false

	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if trimmed == delim+"--" {
			if inPart {
				parts = append(parts, []byte(cur.String()))
			}
			break
		}
		if trimmed == delim {
			if inPart {
				parts = append(parts, []byte(cur.String()))
			}
			cur.Reset()
			inPart = true
			continue
		}
		if inPart {
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	return parts
}

func parseMIMEPart(raw []byte) mimePart {
	headerBytes, bodyBytes := splitHeadersAndBody(raw)
	headers := parseHeaderBlock(headerBytes)

	var part mimePart
	part.contentType = "text/plain"

	if v := headerValue(headers, "Content-Type"); v != "" {
		mainType, params, err := mime.ParseMediaType(v)
		if err == nil {
			part.contentType = mainType
			part.params = params
		} else {
			part.contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
		}
	}

	if v := headerValue(headers, "Content-Disposition"); v != "" {
		disp, dparams, err := mime.ParseMediaType(v)
		if err == nil {
			part.disposition = strings.ToLower(disp)
			if fn, ok := dparams["filename"]; ok {
				part.filename = fn
			}
		}
	}
	if part.filename == "" {
		if fn, ok := part.params["name"]; ok {
			part.filename = fn
		}
	}
	if cid := headerValue(headers, "Content-ID"); cid != "" {
		part.contentID = strings.Trim(cid, "<>")
	}

	if strings.HasPrefix(part.contentType, "multipart/") {
		boundary := part.params["boundary"]
		part.isMultipart = true
		if boundary != "" {
			for _, child := range splitMultipart(bodyBytes, boundary) {
				part.children = append(part.children, parseMIMEPart(child))
			}
		}
		return part
	}

	part.decoded = decodeTransferEncoding(bodyBytes, headerValue(headers, "Content-Transfer-Encoding"))
	return part
}

// applyPart folds one parsed top-level multipart child into msg, per
// spec.md §4.2 step 6: multipart/alternative keeps the highest-fidelity
// text and html parts; multipart/mixed concatenates textual parts and
// collects non-textual parts as attachments.
func applyPart(msg *Message, part mimePart, isAlternative bool) {
	if part.isMultipart {
		nestedAlternative := part.contentType == "multipart/alternative"
		for _, child := range part.children {
			applyPart(msg, child, nestedAlternative)
		}
		return
	}

	isAttachment := part.disposition == "attachment" || (part.filename != "" && part.disposition != "inline" && !isTextual(part.contentType))

	if isTextual(part.contentType) && !isAttachment {
		text := decodeText(part.decoded, part.params["charset"])
		switch part.contentType {
		case "text/html":
			if isAlternative {
				msg.BodyHTML = text
			} else {
				msg.BodyHTML += text
			}
		default:
			if isAlternative {
				msg.BodyText = text
			} else {
				if msg.BodyText != "" {
					msg.BodyText += "\n"
				}
				msg.BodyText += text
			}
		}
		return
	}

	msg.Attachments = append(msg.Attachments, AttachmentInfo{
		Filename:  part.filename,
		MimeType:  part.contentType,
		Size:      len(part.decoded),
		ContentID: part.contentID,
		IsInline:  part.disposition == "inline",
		Data:      part.decoded,
	})
}

func isTextual(contentType string) bool {
	return contentType == "text/plain" || contentType == "text/html"
}

// decodeTransferEncoding applies Content-Transfer-Encoding to raw body
// bytes: base64, quoted-printable, 7bit, 8bit (spec.md §4.2 step 6). This is
// transfer decoding only, not charset conversion — the returned bytes are
// still in whatever charset the part declares, so attachment bytes stay
// untouched while textual parts go on to decodeText.
func decodeTransferEncoding(body []byte, cte string) []byte {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(body))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			// Tolerate trailing garbage/padding issues; decode what we can.
			decoded, _ = base64.RawStdEncoding.DecodeString(cleaned)
		}
		return decoded
	case "quoted-printable":
		r := quotedprintable.NewReader(bytes.NewReader(body))
		var out []byte
		buf := make([]byte, 512)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			if err != nil {
				break
			}
		}
		return out
	default: // 7bit, 8bit, or unspecified
		return body
	}
}
