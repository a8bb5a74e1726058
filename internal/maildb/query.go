package maildb

import (
	"database/sql"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// GetMessage returns the canonical message with the given Apple rowid, or
// (nil, false) if not found.
func (d *DB) GetMessage(appleRowID int64) (*Message, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := d.conn.QueryRow(`
		SELECT id, apple_rowid, message_id, mailbox_id, mailbox_name, subject,
		       sender_name, sender_email, date_received, date_sent,
		       is_read, is_flagged, is_deleted, has_attachments, thread_id,
		       in_reply_to, "references"
		FROM messages WHERE apple_rowid = ?`, appleRowID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "getting message %d", appleRowID)
	}
	return msg, true, nil
}

// GetMessages returns up to limit canonical messages starting at offset,
// optionally filtered by mailbox and read status, ordered by date_received
// descending.
func (d *DB) GetMessages(limit, offset int, mailboxID string, unreadOnly bool) ([]*Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `
		SELECT id, apple_rowid, message_id, mailbox_id, mailbox_name, subject,
		       sender_name, sender_email, date_received, date_sent,
		       is_read, is_flagged, is_deleted, has_attachments, thread_id,
		       in_reply_to, "references"
		FROM messages WHERE 1=1`
	var args []any
	if mailboxID != "" {
		query += " AND mailbox_id = ?"
		args = append(args, mailboxID)
	}
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY date_received DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing messages")
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning message row")
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// GetMailboxes returns every canonical mailbox.
func (d *DB) GetMailboxes() ([]*Mailbox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query(`SELECT id, name, account_id FROM mailboxes`)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing mailboxes")
	}
	defer rows.Close()

	var out []*Mailbox
	for rows.Next() {
		var mb Mailbox
		var name, account sql.NullString
		if err := rows.Scan(&mb.ID, &name, &account); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning mailbox row")
		}
		mb.Name = name.String
		mb.AccountID = account.String
		out = append(out, &mb)
	}
	return out, rows.Err()
}

// GetThreads returns up to limit threads starting at offset, sorted by
// sortBy, optionally filtered to threads containing participant.
func (d *DB) GetThreads(limit, offset int, sortBy ThreadSortField, participant string) ([]*Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `SELECT id, subject, participant_count, message_count, first_date, last_date FROM threads`
	var args []any
	if participant != "" {
		query += ` WHERE id IN (
			SELECT DISTINCT tm.thread_id FROM thread_messages tm
			JOIN messages m ON m.id = tm.message_id
			WHERE m.sender_email = ?
		)`
		args = append(args, participant)
	}

	switch sortBy {
	case SortBySubject:
		query += " ORDER BY subject ASC"
	case SortByMessageCount:
		query += " ORDER BY message_count DESC"
	default:
		query += " ORDER BY last_date DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing threads")
	}
	defer rows.Close()

	var out []*Thread
	for rows.Next() {
		var th Thread
		if err := rows.Scan(&th.ID, &th.Subject, &th.ParticipantCount, &th.MessageCount, &th.FirstDate, &th.LastDate); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning thread row")
		}
		out = append(out, &th)
	}
	return out, rows.Err()
}

// GetThreadCount returns the number of threads, optionally filtered to
// those containing participant.
func (d *DB) GetThreadCount(participant string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `SELECT COUNT(*) FROM threads`
	var args []any
	if participant != "" {
		query = `SELECT COUNT(DISTINCT tm.thread_id) FROM thread_messages tm
			JOIN messages m ON m.id = tm.message_id WHERE m.sender_email = ?`
		args = append(args, participant)
	}
	var count int
	if err := d.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "counting threads")
	}
	return count, nil
}

// GetMessagesInThreadViaJunction returns up to limit message ids belonging
// to threadID, ordered by junction position ascending.
func (d *DB) GetMessagesInThreadViaJunction(threadID string, limit int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query(`
		SELECT message_id FROM thread_messages
		WHERE thread_id = ? ORDER BY position ASC LIMIT ?`, threadID, limit)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing thread messages")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning thread message row")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpdateThreadPositions recomputes junction position by ascending
// date_received for every message in threadID.
func (d *DB) UpdateThreadPositions(threadID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query(`
		SELECT m.id FROM messages m
		JOIN thread_messages tm ON tm.message_id = m.id
		WHERE tm.thread_id = ? ORDER BY m.date_received ASC`, threadID)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing thread messages for reposition")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning message id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "iterating thread messages")
	}

	stmt, err := d.conn.Prepare(`UPDATE thread_messages SET position = ? WHERE thread_id = ? AND message_id = ?`)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "preparing position update")
	}
	defer stmt.Close()
	for i, id := range ids {
		if _, err := stmt.Exec(i, threadID, id); err != nil {
			return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "updating position for message %q", id)
		}
	}
	return nil
}

// SetSyncStatus stores a key/value pair in the mail database's sync_status
// table.
func (d *DB) SetSyncStatus(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.conn.Exec(`INSERT INTO sync_status (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "setting sync status %q", key)
	}
	return nil
}

// GetSyncStatus returns the value stored for key, and whether it was
// present.
func (d *DB) GetSyncStatus(key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var value string
	err := d.conn.QueryRow(`SELECT value FROM sync_status WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "getting sync status %q", key)
	}
	return value, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (*Message, error) {
	var msg Message
	var appleRowID sql.NullInt64
	var messageID, mailboxID, mailboxName, subject, senderName, senderEmail, threadID sql.NullString
	var inReplyTo, references sql.NullString
	var isRead, isFlagged, isDeleted, hasAttachments int64

	if err := r.Scan(
		&msg.ID, &appleRowID, &messageID, &mailboxID, &mailboxName, &subject,
		&senderName, &senderEmail, &msg.DateReceived, &msg.DateSent,
		&isRead, &isFlagged, &isDeleted, &hasAttachments, &threadID,
		&inReplyTo, &references,
	); err != nil {
		return nil, err
	}

	if appleRowID.Valid {
		v := appleRowID.Int64
		msg.AppleRowID = &v
	}
	msg.MessageID = messageID.String
	msg.MailboxID = mailboxID.String
	msg.MailboxName = mailboxName.String
	msg.Subject = subject.String
	msg.SenderName = senderName.String
	msg.SenderEmail = senderEmail.String
	msg.ThreadID = threadID.String
	msg.IsRead = isRead == 1
	msg.IsFlagged = isFlagged == 1
	msg.IsDeleted = isDeleted == 1
	msg.HasAttachments = hasAttachments == 1
	msg.InReplyTo = inReplyTo.String
	msg.References = splitReferences(references.String)

	return &msg, nil
}
