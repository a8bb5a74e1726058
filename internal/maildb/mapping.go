package maildb

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"strings"
)

// convertDate floors an Envelope Index REAL date (seconds, possibly with a
// fractional component) to an integer Unix seconds value.
func convertDate(v float64) int64 {
	return int64(math.Floor(v))
}

// convertBool converts an Envelope Index integer flag column to a bool.
func convertBool(v int64) bool {
	return v == 1
}

// extractMailboxName returns the last path segment of a mailbox url, which
// is either "mailbox://account/Name" or an absolute "/abs/path/Name.mbox"
// (spec.md §4.7).
func extractMailboxName(mailboxURL string) string {
	trimmed := strings.TrimRight(mailboxURL, "/")
	if trimmed == "" {
		return ""
	}
	name := path.Base(trimmed)
	name = strings.TrimSuffix(name, ".mbox")
	return name
}

// extractAccountId returns the host segment of a "mailbox://host/name" url,
// or "" if the url has no mailbox:// scheme.
func extractAccountId(mailboxURL string) string {
	u, err := url.Parse(mailboxURL)
	if err != nil || u.Scheme != "mailbox" {
		return ""
	}
	return u.Host
}

// formatSender renders a canonical "\"Name\" <email>" display string: both
// name and email quoted-name-plus-angle-bracket when both are present,
// bare email when there is no name, "" when there is no email at all.
func formatSender(email, name string) string {
	if email == "" {
		return ""
	}
	if name == "" {
		return email
	}
	return fmt.Sprintf("%q <%s>", name, email)
}

// parseSender is the inverse of formatSender: it accepts both the quoted
// "\"Name\" <email>" form and an unquoted "Name <email>" form, falling back
// to treating the whole string as a bare email when no angle brackets are
// present.
func parseSender(s string) (name, email string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	open := strings.LastIndexByte(s, '<')
	closeIdx := strings.LastIndexByte(s, '>')
	if open < 0 || closeIdx < open {
		return "", s
	}
	email = strings.TrimSpace(s[open+1 : closeIdx])
	name = strings.TrimSpace(s[:open])
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		name = name[1 : len(name)-1]
	}
	return name, email
}
