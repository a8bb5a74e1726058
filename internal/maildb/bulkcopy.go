package maildb

import (
	"database/sql"

	"github.com/dwrekofc/swiftea/internal/ids"
	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// PerformBulkCopy projects rows from the attached Envelope Index into the
// canonical schema inside a single write transaction, in the order
// addresses -> mailboxes -> messages (spec.md §4.7 step 2, §5 ordering
// guarantee). It is idempotent at the level of canonical rows: the same
// natural key always derives the same id, and INSERT OR REPLACE / the
// is_deleted-preserving merge (see copyMessages) absorb re-runs (spec.md §8
// item 4, S4).
func (d *DB) PerformBulkCopy() (BulkCopyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached {
		return BulkCopyResult{}, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return BulkCopyResult{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning bulk copy transaction")
	}
	defer tx.Rollback()

	addressCount, err := copyAddresses(tx)
	if err != nil {
		return BulkCopyResult{}, err
	}

	mailboxCount, err := copyMailboxes(tx)
	if err != nil {
		return BulkCopyResult{}, err
	}

	messageCount, err := copyMessages(tx, selectWithJoinsQuery())
	if err != nil {
		return BulkCopyResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return BulkCopyResult{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "committing bulk copy transaction")
	}

	return BulkCopyResult{
		MessageCount: messageCount,
		MailboxCount: mailboxCount,
		AddressCount: addressCount,
		TotalCount:   messageCount + mailboxCount + addressCount,
	}, nil
}

func copyAddresses(tx *sql.Tx) (int, error) {
	rows, err := tx.Query(selectUpstreamAddressesQuery)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "projecting upstream addresses")
	}
	defer rows.Close()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO addresses (rowid, address, comment) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "preparing address upsert")
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		var rowID int64
		var address, comment sql.NullString
		if err := rows.Scan(&rowID, &address, &comment); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream address row")
		}
		if _, err := stmt.Exec(rowID, nullIfEmpty(address), nullIfEmpty(comment)); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting address %d", rowID)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "iterating upstream addresses")
	}
	return count, nil
}

func copyMailboxes(tx *sql.Tx) (int, error) {
	rows, err := tx.Query(selectUpstreamMailboxesQuery)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "projecting upstream mailboxes")
	}
	defer rows.Close()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO mailboxes (id, name, account_id) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "preparing mailbox upsert")
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		var upstreamRowID int64
		var urlStr string
		if err := rows.Scan(&upstreamRowID, &urlStr); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream mailbox row")
		}
		id := mailboxID(urlStr)
		name := extractMailboxName(urlStr)
		accountID := extractAccountId(urlStr)
		if _, err := stmt.Exec(id, nullIfEmptyString(name), nullIfEmptyString(accountID)); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting mailbox %q", urlStr)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "iterating upstream mailboxes")
	}
	return count, nil
}

// copyMessages projects rows matching query (one of the shapes in
// queries.go, always selecting the selectWithJoinsQuery column order) into
// the canonical messages table. Parameterizing the query lets callers run a
// restricted projection (e.g. selectInboxOnlyQuery or selectByIdQuery) for an
// incremental, partial re-copy instead of the full upstream scan.
func copyMessages(tx *sql.Tx, query string, args ...any) (int, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "projecting upstream messages")
	}
	defer rows.Close()

	// is_deleted and has_attachments are both preserved across re-runs rather
	// than replaced wholesale: is_deleted per spec.md §9's open question,
	// resolved explicitly here, and has_attachments because the upstream
	// Envelope Index carries no attachment information at all — a bulk copy
	// can only default a newly-seen message to "no attachments known yet",
	// never downgrade one that internal/emlx's on-demand parse already
	// marked true back to false.
	stmt, err := tx.Prepare(`
		INSERT INTO messages (
			id, apple_rowid, message_id, mailbox_id, mailbox_name, subject,
			sender_name, sender_email, date_received, date_sent,
			is_read, is_flagged, is_deleted, has_attachments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
		ON CONFLICT(id) DO UPDATE SET
			apple_rowid     = excluded.apple_rowid,
			message_id      = excluded.message_id,
			mailbox_id      = excluded.mailbox_id,
			mailbox_name    = excluded.mailbox_name,
			subject         = excluded.subject,
			sender_name     = excluded.sender_name,
			sender_email    = excluded.sender_email,
			date_received   = excluded.date_received,
			date_sent       = excluded.date_sent,
			is_read         = excluded.is_read,
			is_flagged      = excluded.is_flagged
	`)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "preparing message upsert")
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		var upstreamRowID int64
		var subject, senderEmail, senderName, messageID sql.NullString
		var dateReceived, dateSent sql.NullFloat64
		var mailboxUpstreamID int64
		var mailboxURL string
		var read, flagged int64

		if err := rows.Scan(&upstreamRowID, &subject, &senderEmail, &senderName,
			&dateReceived, &dateSent, &messageID, &mailboxUpstreamID, &mailboxURL,
			&read, &flagged); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream message row")
		}

		var dateReceivedInt int64
		if dateReceived.Valid {
			dateReceivedInt = convertDate(dateReceived.Float64)
		}
		var dateSentInt int64
		if dateSent.Valid {
			dateSentInt = convertDate(dateSent.Float64)
		}

		var messageIDPtr, subjectPtr *string
		if messageID.Valid {
			messageIDPtr = &messageID.String
		}
		if subject.Valid {
			subjectPtr = &subject.String
		}
		sender := formatSender(nullString(senderEmail), nullString(senderName))
		senderPtr := &sender
		dateComponent := dateReceivedInt
		id := ids.GenerateMessageID(messageIDPtr, subjectPtr, senderPtr, &dateComponent, &upstreamRowID)

		mbID := mailboxID(mailboxURL)
		mailboxName := extractMailboxName(mailboxURL)

		if _, err := stmt.Exec(
			id, upstreamRowID, nullIfEmptyString(nullString(messageID)), mbID, nullIfEmptyString(mailboxName),
			nullIfEmptyString(nullString(subject)), nullIfEmptyString(nullString(senderName)),
			nullIfEmptyString(nullString(senderEmail)), dateReceivedInt, dateSentInt,
			convertBool(read), convertBool(flagged),
		); err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting message %d", upstreamRowID)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "iterating upstream messages")
	}
	return count, nil
}

// mailboxID derives the canonical mailbox id from its upstream url (spec.md
// §3 Mailbox: "identified by stable id derived from url").
func mailboxID(mailboxURL string) string {
	return ids.HashKey("mailbox", mailboxURL)
}

func nullIfEmpty(s sql.NullString) any {
	if !s.Valid || s.String == "" {
		return nil
	}
	return s.String
}

func nullIfEmptyString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}
