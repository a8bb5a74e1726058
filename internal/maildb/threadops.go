package maildb

import (
	"database/sql"
	"strings"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// GetThread returns the thread row with the given id, or (nil, false) if it
// does not exist.
func (d *DB) GetThread(id string) (*Thread, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getThreadLocked(id)
}

func (d *DB) getThreadLocked(id string) (*Thread, bool, error) {
	var th Thread
	err := d.conn.QueryRow(`
		SELECT id, subject, participant_count, message_count, first_date, last_date
		FROM threads WHERE id = ?`, id).Scan(
		&th.ID, &th.Subject, &th.ParticipantCount, &th.MessageCount, &th.FirstDate, &th.LastDate)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "getting thread %q", id)
	}
	return &th, true, nil
}

// CreateThreadIfAbsent inserts a new thread row with the given id/subject
// and zeroed statistics if it does not already exist. Returns whether the
// thread was newly created.
func (d *DB) CreateThreadIfAbsent(id, subject string, firstDate, lastDate int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, exists, err := d.getThreadLocked(id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = d.conn.Exec(`
		INSERT INTO threads (id, subject, participant_count, message_count, first_date, last_date)
		VALUES (?, ?, 0, 0, ?, ?)`, id, subject, firstDate, lastDate)
	if err != nil {
		return false, vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "creating thread %q", id)
	}
	return true, nil
}

// LinkMessageToThread inserts the (threadID, messageID, position) junction
// row and sets the message's thread_id column, inside a single transaction.
func (d *DB) LinkMessageToThread(threadID, messageID string, position int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.Begin()
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning thread link transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO thread_messages (thread_id, message_id, position) VALUES (?, ?, ?)`,
		threadID, messageID, position); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "linking message %q to thread %q", messageID, threadID)
	}
	if _, err := tx.Exec(`UPDATE messages SET thread_id = ? WHERE id = ?`, threadID, messageID); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "setting thread_id on message %q", messageID)
	}

	return tx.Commit()
}

// RecomputeThreadMetadata recomputes message_count, participant_count,
// first_date, and last_date for threadID from its junction rows (spec.md
// §4.9 step 5).
func (d *DB) RecomputeThreadMetadata(threadID string) (*Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var messageCount, participantCount int
	var firstDate, lastDate sql.NullInt64

	err := d.conn.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT m.sender_email), MIN(m.date_received), MAX(m.date_received)
		FROM thread_messages tm
		JOIN messages m ON m.id = tm.message_id
		WHERE tm.thread_id = ?`, threadID).Scan(&messageCount, &participantCount, &firstDate, &lastDate)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "aggregating thread %q", threadID)
	}

	_, err = d.conn.Exec(`
		UPDATE threads SET message_count = ?, participant_count = ?, first_date = ?, last_date = ?
		WHERE id = ?`, messageCount, participantCount, firstDate.Int64, lastDate.Int64, threadID)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "updating thread %q metadata", threadID)
	}

	th, ok, err := d.getThreadLocked(threadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vaulterrors.New(vaulterrors.KindQueryFailed, "thread %q vanished during metadata recompute", threadID)
	}
	return th, nil
}

// MessageCountInThread returns |junction(threadID)| directly, used by
// callers asserting spec.md §8 item 6 (message_count == junction count).
func (d *DB) MessageCountInThread(threadID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM thread_messages WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "counting junction rows for thread %q", threadID)
	}
	return count, nil
}

// InsertMessage inserts or replaces a canonical message row directly (used
// by tests and by callers assembling rows outside the bulk-copy pipeline).
func (d *DB) InsertMessage(m *Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var appleRowID any
	if m.AppleRowID != nil {
		appleRowID = *m.AppleRowID
	}

	_, err := d.conn.Exec(`
		INSERT OR REPLACE INTO messages (
			id, apple_rowid, message_id, mailbox_id, mailbox_name, subject,
			sender_name, sender_email, date_received, date_sent,
			is_read, is_flagged, is_deleted, has_attachments, thread_id,
			in_reply_to, "references"
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, appleRowID, nullIfEmptyString(m.MessageID), nullIfEmptyString(m.MailboxID),
		nullIfEmptyString(m.MailboxName), nullIfEmptyString(m.Subject), nullIfEmptyString(m.SenderName),
		nullIfEmptyString(m.SenderEmail), m.DateReceived, m.DateSent,
		boolToInt(m.IsRead), boolToInt(m.IsFlagged), boolToInt(m.IsDeleted), boolToInt(m.HasAttachments),
		nullIfEmptyString(m.ThreadID), nullIfEmptyString(m.InReplyTo), nullIfEmptyString(joinReferences(m.References)),
	)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "inserting message %q", m.ID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// joinReferences serializes a message's References header tokens into the
// "references" column's TEXT storage, matching the header's own
// whitespace-separated wire format (splitReferences reverses this).
func joinReferences(refs []string) string {
	return strings.Join(refs, " ")
}

// splitReferences parses the "references" column back into the token list
// emlxheader.ParseThreading would have produced.
func splitReferences(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
