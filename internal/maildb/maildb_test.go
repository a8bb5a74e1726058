package maildb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swiftea.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("initializing db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("expected second Initialize to be a no-op, got %v", err)
	}
}

// buildUpstreamFixture creates a minimal Envelope Index-shaped SQLite file
// with the given number of addresses, mailboxes, and messages (spec.md §8
// S4 shape, scaled down for a fast unit test).
func buildUpstreamFixture(t *testing.T, numMailboxes, numAddresses, numMessages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Envelope Index")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening upstream fixture: %v", err)
	}
	defer conn.Close()

	schema := `
		CREATE TABLE mailboxes (ROWID INTEGER PRIMARY KEY, url TEXT);
		CREATE TABLE addresses (ROWID INTEGER PRIMARY KEY, address TEXT, comment TEXT);
		CREATE TABLE subjects (ROWID INTEGER PRIMARY KEY, subject TEXT);
		CREATE TABLE messages (
			ROWID INTEGER PRIMARY KEY, subject INTEGER, sender INTEGER,
			date_received REAL, date_sent REAL, message_id TEXT,
			mailbox INTEGER, read INTEGER, flagged INTEGER
		);
	`
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("creating upstream schema: %v", err)
	}

	for i := 1; i <= numMailboxes; i++ {
		if _, err := conn.Exec(`INSERT INTO mailboxes (ROWID, url) VALUES (?, ?)`,
			i, "mailbox://acct1/Mailbox"+itoa(i)); err != nil {
			t.Fatalf("inserting mailbox: %v", err)
		}
	}
	for i := 1; i <= numAddresses; i++ {
		if _, err := conn.Exec(`INSERT INTO addresses (ROWID, address, comment) VALUES (?, ?, ?)`,
			i, "user"+itoa(i)+"@example.com", "User "+itoa(i)); err != nil {
			t.Fatalf("inserting address: %v", err)
		}
	}
	for i := 1; i <= numMessages; i++ {
		if _, err := conn.Exec(`INSERT INTO subjects (ROWID, subject) VALUES (?, ?)`, i, "Subject "+itoa(i)); err != nil {
			t.Fatalf("inserting subject: %v", err)
		}
		mailbox := (i % numMailboxes) + 1
		sender := (i % numAddresses) + 1
		if _, err := conn.Exec(`
			INSERT INTO messages (ROWID, subject, sender, date_received, date_sent, message_id, mailbox, read, flagged)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, i, sender, float64(1700000000+i), float64(1700000000+i), "<msg"+itoa(i)+"@example.com>",
			mailbox, i%2, 0); err != nil {
			t.Fatalf("inserting message: %v", err)
		}
	}

	return path
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// S4 — attach/bulk copy, including idempotence across re-runs.
func TestPerformBulkCopyIdempotent(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 3, 5, 20)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	first, err := db.PerformBulkCopy()
	if err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if first.MessageCount != 20 || first.MailboxCount != 3 || first.AddressCount != 5 {
		t.Fatalf("unexpected first bulk copy result: %#v", first)
	}

	second, err := db.PerformBulkCopy()
	if err != nil {
		t.Fatalf("second bulk copy: %v", err)
	}
	if second != first {
		t.Fatalf("expected idempotent re-run, got %#v vs %#v", second, first)
	}
}

func TestAttachSingletonSlot(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 1)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	if err := db.AttachEnvelopeIndex(upstreamPath); err == nil {
		t.Fatal("expected second attach to fail")
	}
}

func TestBulkCopyPreservesIsDeleted(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 1)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := db.PerformBulkCopy(); err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if err := db.DetachEnvelopeIndex(); err != nil {
		t.Fatalf("detach: %v", err)
	}

	msgs, err := db.GetMessages(10, 0, "", false)
	if err != nil {
		t.Fatalf("getMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	// Mark the message locally deleted, then re-run bulk copy.
	if _, err := db.conn.Exec(`UPDATE messages SET is_deleted = 1 WHERE id = ?`, msgs[0].ID); err != nil {
		t.Fatalf("marking deleted: %v", err)
	}

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if _, err := db.PerformBulkCopy(); err != nil {
		t.Fatalf("second bulk copy: %v", err)
	}
	if err := db.DetachEnvelopeIndex(); err != nil {
		t.Fatalf("detach: %v", err)
	}

	got, found, err := db.GetMessage(*msgs[0].AppleRowID)
	if err != nil || !found {
		t.Fatalf("expected message to still exist, err=%v found=%v", err, found)
	}
	if !got.IsDeleted {
		t.Fatal("expected is_deleted to survive a re-run bulk copy")
	}
}

func TestBulkCopyPreservesHasAttachments(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 1)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := db.PerformBulkCopy(); err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if err := db.DetachEnvelopeIndex(); err != nil {
		t.Fatalf("detach: %v", err)
	}

	msgs, err := db.GetMessages(10, 0, "", false)
	if err != nil {
		t.Fatalf("getMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].HasAttachments {
		t.Fatal("expected bulk copy (no attachment data upstream) to default has_attachments to false")
	}

	// Simulate internal/emlx's on-demand parse discovering an attachment,
	// then re-run bulk copy: the Envelope Index still carries no attachment
	// information, so the re-run must not stomp the true value back to false.
	if _, err := db.conn.Exec(`UPDATE messages SET has_attachments = 1 WHERE id = ?`, msgs[0].ID); err != nil {
		t.Fatalf("marking has_attachments: %v", err)
	}

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if _, err := db.PerformBulkCopy(); err != nil {
		t.Fatalf("second bulk copy: %v", err)
	}
	if err := db.DetachEnvelopeIndex(); err != nil {
		t.Fatalf("detach: %v", err)
	}

	got, found, err := db.GetMessage(*msgs[0].AppleRowID)
	if err != nil || !found {
		t.Fatalf("expected message to still exist, err=%v found=%v", err, found)
	}
	if !got.HasAttachments {
		t.Fatal("expected has_attachments to survive a re-run bulk copy")
	}
}

func TestThreadLifecycle(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateThreadIfAbsent("thread1", "hello", 100, 100)
	if err != nil || !created {
		t.Fatalf("expected thread created, err=%v created=%v", err, created)
	}
	createdAgain, err := db.CreateThreadIfAbsent("thread1", "hello", 100, 100)
	if err != nil || createdAgain {
		t.Fatalf("expected second create to be a no-op, err=%v created=%v", err, createdAgain)
	}

	m1 := &Message{ID: "msg1", DateReceived: 100, SenderEmail: "a@example.com"}
	m2 := &Message{ID: "msg2", DateReceived: 200, SenderEmail: "b@example.com"}
	if err := db.InsertMessage(m1); err != nil {
		t.Fatalf("insert msg1: %v", err)
	}
	if err := db.InsertMessage(m2); err != nil {
		t.Fatalf("insert msg2: %v", err)
	}

	if err := db.LinkMessageToThread("thread1", "msg1", 0); err != nil {
		t.Fatalf("link msg1: %v", err)
	}
	if err := db.LinkMessageToThread("thread1", "msg2", 1); err != nil {
		t.Fatalf("link msg2: %v", err)
	}

	th, err := db.RecomputeThreadMetadata("thread1")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if th.MessageCount != 2 || th.ParticipantCount != 2 {
		t.Fatalf("got %#v", th)
	}

	count, err := db.MessageCountInThread("thread1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != th.MessageCount {
		t.Fatalf("expected message_count == junction count, got %d vs %d", th.MessageCount, count)
	}
}

func TestPerformInboxOnlyBulkCopy(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 2, 3, 10)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	result, err := db.PerformInboxOnlyBulkCopy()
	if err != nil {
		t.Fatalf("inbox-only bulk copy: %v", err)
	}
	// buildUpstreamFixture names mailboxes "Mailbox1", "Mailbox2", ... — none
	// end in "/inbox", so selectInboxOnlyQuery should project zero messages.
	if result.MessageCount != 0 {
		t.Fatalf("expected 0 messages with no /inbox mailbox, got %d", result.MessageCount)
	}
	if result.AddressCount != 3 || result.MailboxCount != 2 {
		t.Fatalf("unexpected address/mailbox counts: %#v", result)
	}
}

func TestUpstreamRowExists(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 3)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	got, err := db.UpstreamRowExists([]int64{1, 2, 99})
	if err != nil {
		t.Fatalf("UpstreamRowExists: %v", err)
	}
	if !got[1] || !got[2] || got[99] {
		t.Fatalf("unexpected existence map: %#v", got)
	}
}

func TestUpstreamMessageStatusAndRefresh(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 2)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := db.PerformBulkCopy(); err != nil {
		t.Fatalf("bulk copy: %v", err)
	}

	statuses, err := db.UpstreamMessageStatus([]int64{1, 2})
	if err != nil {
		t.Fatalf("UpstreamMessageStatus: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	// buildUpstreamFixture sets read = i%2, so message 1 is read, message 2 is unread.
	if !statuses[1].IsRead {
		t.Fatal("expected message 1 to be read upstream")
	}
	if statuses[2].IsRead {
		t.Fatal("expected message 2 to be unread upstream")
	}

	// Flip is_read locally for message 2 (unread upstream), then detach and
	// refresh it back from the (unchanged) upstream snapshot.
	if _, err := db.conn.Exec(`UPDATE messages SET is_read = 1 WHERE apple_rowid = 2`); err != nil {
		t.Fatalf("flipping is_read: %v", err)
	}
	if err := db.DetachEnvelopeIndex(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	updated, err := db.RefreshMessageStatuses([]int64{1, 2})
	if err != nil {
		t.Fatalf("RefreshMessageStatuses: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 rows refreshed, got %d", updated)
	}

	msg, found, err := db.GetMessage(2)
	if err != nil || !found {
		t.Fatalf("GetMessage: err=%v found=%v", err, found)
	}
	if msg.IsRead {
		t.Fatal("expected RefreshMessageStatuses to restore is_read=false from upstream")
	}
}

func TestUpstreamMessageMailbox(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 3, 1, 3)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	got, err := db.UpstreamMessageMailbox([]int64{1, 2, 3})
	if err != nil {
		t.Fatalf("UpstreamMessageMailbox: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 mailbox refs, got %d", len(got))
	}
	// buildUpstreamFixture assigns mailbox = (i % numMailboxes) + 1.
	want := map[int64]int64{1: 2, 2: 3, 3: 1}
	for id, mailbox := range want {
		if got[id] != mailbox {
			t.Errorf("message %d: mailbox = %d, want %d", id, got[id], mailbox)
		}
	}
}

func TestRecopyUpstreamMessage(t *testing.T) {
	db := openTestDB(t)
	upstreamPath := buildUpstreamFixture(t, 1, 1, 1)

	if err := db.AttachEnvelopeIndex(upstreamPath); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer db.DetachEnvelopeIndex()

	count, err := db.RecopyUpstreamMessage(1)
	if err != nil {
		t.Fatalf("RecopyUpstreamMessage: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 message copied, got %d", count)
	}

	got, found, err := db.GetMessage(1)
	if err != nil || !found {
		t.Fatalf("GetMessage: err=%v found=%v", err, found)
	}
	if got.Subject != "Subject 1" {
		t.Fatalf("Subject = %q, want %q", got.Subject, "Subject 1")
	}
}

func TestInsertMessagePersistsThreadingHeaders(t *testing.T) {
	db := openTestDB(t)

	rowID := int64(42)
	m := &Message{
		ID:           "msg-threaded",
		AppleRowID:   &rowID,
		DateReceived: 100,
		InReplyTo:    "<parent@example.com>",
		References:   []string{"<root@example.com>", "<parent@example.com>"},
	}
	if err := db.InsertMessage(m); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	got, ok, err := db.GetMessage(rowID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !ok {
		t.Fatal("expected message to be found")
	}
	if got.InReplyTo != m.InReplyTo {
		t.Errorf("InReplyTo = %q, want %q", got.InReplyTo, m.InReplyTo)
	}
	if len(got.References) != 2 || got.References[0] != "<root@example.com>" || got.References[1] != "<parent@example.com>" {
		t.Errorf("References = %#v, want %#v", got.References, m.References)
	}
}
