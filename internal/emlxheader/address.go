package emlxheader

import "strings"

// Address is a single parsed participant from a From/To/Cc/Bcc header.
type Address struct {
	Name  string // decoded display name; empty if none
	Email string
}

// DisplayString returns "Name <email>" when Name is non-empty, else just
// Email (spec.md §4.2 "EmailAddress.displayString").
func (a Address) DisplayString() string {
	if a.Name != "" {
		return a.Name + " <" + a.Email + ">"
	}
	return a.Email
}

// ParseAddressList parses a comma-separated RFC 5322 address list where
// each entry is `bare@host`, `Display <bare@host>`, or `"Quoted Display"
// <bare@host>`. Display names are RFC-2047-decoded after extraction. Empty
// display strings become the zero Name (spec.md §4.2 step 5).
func ParseAddressList(header string) []Address {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	var out []Address
	for _, entry := range splitAddressEntries(header) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if addr, ok := parseOneAddress(entry); ok {
			out = append(out, addr)
		}
	}
	return out
}

// splitAddressEntries splits on top-level commas, respecting quoted strings
// and angle brackets so commas inside a quoted display name or an
// angle-bracketed address don't split an entry in half. RFC 5322 group
// syntax ("name: a, b;") is not recognized.
func splitAddressEntries(header string) []string {
	var entries []string
	var cur strings.Builder
	inQuotes := false
	depth := 0 // angle-bracket nesting

	for i := 0; i < len(header); i++ {
		c := header[i]
		switch {
		case c == '"' && (i == 0 || header[i-1] != '\\'):
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == '<' && !inQuotes:
			depth++
			cur.WriteByte(c)
		case c == '>' && !inQuotes:
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case c == ',' && !inQuotes && depth == 0:
			entries = append(entries, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		entries = append(entries, cur.String())
	}
	return entries
}

func parseOneAddress(entry string) (Address, bool) {
	lt := strings.LastIndexByte(entry, '<')
	gt := strings.LastIndexByte(entry, '>')

	if lt >= 0 && gt > lt {
		display := strings.TrimSpace(entry[:lt])
		email := strings.TrimSpace(entry[lt+1 : gt])
		display = unquote(display)
		display = DecodeEncodedWords(display)
		if email == "" {
			return Address{}, false
		}
		return Address{Name: display, Email: email}, true
	}

	email := strings.TrimSpace(entry)
	if email == "" {
		return Address{}, false
	}
	return Address{Email: email}, true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
