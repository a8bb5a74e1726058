package maildb

import "strings"

// The query names below are part of the schema contract (spec.md §6): their
// Go identifiers mirror the externally-named projection queries exactly.
// Each operates against the attached upstream Envelope Index, aliased
// "upstream" by AttachEnvelopeIndex.

// selectWithJoinsQuery projects a full message row: the message joined with
// its resolved subject, sender address, and mailbox url.
func selectWithJoinsQuery() string {
	return `
		SELECT m.ROWID, s.subject, a.address, a.comment, m.date_received, m.date_sent,
		       m.message_id, m.mailbox, mb.url, m.read, m.flagged
		FROM upstream.messages m
		LEFT JOIN upstream.subjects s ON m.subject = s.ROWID
		LEFT JOIN upstream.addresses a ON m.sender = a.ROWID
		INNER JOIN upstream.mailboxes mb ON m.mailbox = mb.ROWID
	`
}

// selectInboxOnlyQuery is selectWithJoinsQuery restricted to mailboxes whose
// url ends in "/inbox". SQLite's LIKE is case-insensitive for ASCII, so
// urls ending in "/INBOX" or "/Inbox" match as well.
func selectInboxOnlyQuery() string {
	return selectWithJoinsQuery() + ` WHERE mb.url LIKE '%/inbox'`
}

// existsQuery reports which of the given upstream message rowids exist.
func existsQuery(rowIDs []int64) (string, []any) {
	placeholders, args := inClause(rowIDs)
	return `SELECT m.ROWID FROM upstream.messages m WHERE m.ROWID IN (` + placeholders + `)`, args
}

// statusQuery projects read/flagged status for the given upstream rowids.
func statusQuery(rowIDs []int64) (string, []any) {
	placeholders, args := inClause(rowIDs)
	return `SELECT m.ROWID, m.read, m.flagged FROM upstream.messages m WHERE m.ROWID IN (` + placeholders + `)`, args
}

// selectByIdQuery projects a single message row (same shape as
// selectWithJoinsQuery) by its upstream rowid.
func selectByIdQuery() string {
	return selectWithJoinsQuery() + ` WHERE m.ROWID = ?`
}

// selectMessageMailboxQuery projects just the mailbox reference for the
// given upstream rowids.
func selectMessageMailboxQuery(rowIDs []int64) (string, []any) {
	placeholders, args := inClause(rowIDs)
	return `SELECT m.ROWID, m.mailbox FROM upstream.messages m WHERE m.ROWID IN (` + placeholders + `)`, args
}

func inClause(rowIDs []int64) (string, []any) {
	placeholders := make([]string, len(rowIDs))
	args := make([]any, len(rowIDs))
	for i, id := range rowIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

const selectUpstreamAddressesQuery = `SELECT ROWID, address, comment FROM upstream.addresses`
const selectUpstreamMailboxesQuery = `SELECT ROWID, url FROM upstream.mailboxes`
