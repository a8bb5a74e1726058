package maildb

import (
	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// PerformInboxOnlyBulkCopy projects only the messages in upstream inbox
// mailboxes into the canonical schema, for a caller (e.g. one reacting to an
// internal/watch event) that wants a cheaper partial re-copy instead of a full
// PerformBulkCopy. It reuses the same single-write-transaction, ordered
// addresses -> mailboxes -> messages structure as PerformBulkCopy.
func (d *DB) PerformInboxOnlyBulkCopy() (BulkCopyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached {
		return BulkCopyResult{}, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return BulkCopyResult{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning inbox bulk copy transaction")
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

	messageCount, err := copyMessages(tx, selectInboxOnlyQuery())
	if err != nil {
		return BulkCopyResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return BulkCopyResult{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "committing inbox bulk copy transaction")
	}

	return BulkCopyResult{
		MessageCount: messageCount,
		MailboxCount: mailboxCount,
		AddressCount: addressCount,
		TotalCount:   messageCount + mailboxCount + addressCount,
	}, nil
}

// UpstreamRowExists reports, for each of the given upstream message rowids,
// whether that row still exists in the attached Envelope Index. A caller
// doing incremental maintenance uses this to detect rows that vanished
// upstream (e.g. a message moved to Trash and purged) without re-running
// the full projection.
func (d *DB) UpstreamRowExists(rowIDs []int64) (map[int64]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[int64]bool, len(rowIDs))
	for _, id := range rowIDs {
		out[id] = false
	}
	if len(rowIDs) == 0 {
		return out, nil
	}
	if !d.attached {
		return nil, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	query, args := existsQuery(rowIDs)
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "checking upstream row existence")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream row existence")
		}
		out[id] = true
	}
	return out, rows.Err()
}

// UpstreamMessageStatus is the read/flagged status of one upstream message
// row.
type UpstreamMessageStatus struct {
	IsRead    bool
	IsFlagged bool
}

// UpstreamMessageStatus projects read/flagged status for the given upstream
// rowids, for a caller that wants to refresh just those two fields on a
// known set of already-copied messages (e.g. after a watch.KindModified
// event) instead of re-running the full message projection.
func (d *DB) UpstreamMessageStatus(rowIDs []int64) (map[int64]UpstreamMessageStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(rowIDs) == 0 {
		return map[int64]UpstreamMessageStatus{}, nil
	}
	if !d.attached {
		return nil, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	query, args := statusQuery(rowIDs)
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "projecting upstream message status")
	}
	defer rows.Close()

	out := make(map[int64]UpstreamMessageStatus, len(rowIDs))
	for rows.Next() {
		var id, read, flagged int64
		if err := rows.Scan(&id, &read, &flagged); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream message status")
		}
		out[id] = UpstreamMessageStatus{IsRead: read == 1, IsFlagged: flagged == 1}
	}
	return out, rows.Err()
}

// RefreshMessageStatuses re-projects is_read/is_flagged from the attached
// upstream for exactly the canonical messages whose apple_rowid is in
// rowIDs, without touching any other column. Returns the number of
// canonical rows updated.
func (d *DB) RefreshMessageStatuses(rowIDs []int64) (int, error) {
	statuses, err := d.UpstreamMessageStatus(rowIDs)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stmt, err := d.conn.Prepare(`UPDATE messages SET is_read = ?, is_flagged = ? WHERE apple_rowid = ?`)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "preparing status refresh")
	}
	defer stmt.Close()

	updated := 0
	for rowID, status := range statuses {
		res, err := stmt.Exec(boolToInt(status.IsRead), boolToInt(status.IsFlagged), rowID)
		if err != nil {
			return updated, vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "refreshing status for upstream row %d", rowID)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

// UpstreamMessageMailbox projects just the upstream mailbox reference for
// the given rowids, for a caller that wants to detect a message having
// moved mailboxes without re-copying its other fields.
func (d *DB) UpstreamMessageMailbox(rowIDs []int64) (map[int64]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(rowIDs) == 0 {
		return map[int64]int64{}, nil
	}
	if !d.attached {
		return nil, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	query, args := selectMessageMailboxQuery(rowIDs)
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "projecting upstream message mailboxes")
	}
	defer rows.Close()

	out := make(map[int64]int64, len(rowIDs))
	for rows.Next() {
		var rowID, mailboxUpstreamID int64
		if err := rows.Scan(&rowID, &mailboxUpstreamID); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning upstream message mailbox")
		}
		out[rowID] = mailboxUpstreamID
	}
	return out, rows.Err()
}

// RecopyUpstreamMessage re-projects exactly one upstream message row by its
// rowid, reusing the same scan/mapping logic as copyMessages. The upstream
// mailboxes are upserted first in the same transaction, so the message's
// mailbox_id reference resolves even before any full bulk copy. Used by
// callers that observed a single-message change (e.g. a watch.Event) and
// don't want to pay for a full bulk copy.
func (d *DB) RecopyUpstreamMessage(rowID int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached {
		return 0, vaulterrors.New(vaulterrors.KindNotAttached, "no upstream attached")
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning single-message copy transaction")
	}
	defer tx.Rollback()

	if _, err := copyMailboxes(tx); err != nil {
		return 0, err
	}

	count, err := copyMessages(tx, selectByIdQuery(), rowID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "committing single-message copy transaction")
	}
	return count, nil
}
