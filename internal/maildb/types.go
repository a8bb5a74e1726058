package maildb

// Message is one canonical mail row (spec.md §3 MailMessage).
type Message struct {
	ID             string
	AppleRowID     *int64
	MessageID      string
	MailboxID      string
	MailboxName    string
	Subject        string
	SenderName     string
	SenderEmail    string
	DateReceived   int64
	DateSent       int64
	IsRead         bool
	IsFlagged      bool
	IsDeleted      bool
	HasAttachments bool
	ThreadID       string
	InReplyTo      string
	References     []string
}

// Mailbox is one canonical mailbox row (spec.md §3).
type Mailbox struct {
	ID        string
	Name      string
	AccountID string
}

// Address is copied verbatim from the upstream Envelope Index, with empty
// strings normalized to null (spec.md §3).
type Address struct {
	RowID   int64
	Address string
	Comment string
}

// Thread is one canonical thread row (spec.md §3).
type Thread struct {
	ID               string
	Subject          string
	ParticipantCount int
	MessageCount     int
	FirstDate        int64
	LastDate         int64
}

// ThreadSortField selects the ordering for GetThreads.
type ThreadSortField string

const (
	SortByDate         ThreadSortField = "date"
	SortBySubject      ThreadSortField = "subject"
	SortByMessageCount ThreadSortField = "messageCount"
)

// BulkCopyResult is the row-count summary returned by PerformBulkCopy
// (spec.md §4.7 step 2, §8 S4).
type BulkCopyResult struct {
	MessageCount int
	MailboxCount int
	AddressCount int
	TotalCount   int
}

// ParseFailure records one message that failed during ingestion: its path,
// the stage that failed, and the error. No function in this module produces
// or collects it; there is no batch ingestion routine.
type ParseFailure struct {
	Path  string
	Stage string
	Err   error
}
