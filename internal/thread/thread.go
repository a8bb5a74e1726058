// Package thread assigns mail messages to conversations. DetectThreadId is a
// pure function of header fields; ProcessMessageForThreading and its batch
// counterpart drive that decision into the canonical thread tables owned by
// maildb (spec.md §4.9).
package thread

import (
	"regexp"
	"strings"

	"github.com/dwrekofc/swiftea/internal/ids"
	"github.com/dwrekofc/swiftea/internal/maildb"
	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

var replyPrefix = regexp.MustCompile(`(?i)^(re|fwd|fw):\s*`)
var fwdPrefix = regexp.MustCompile(`(?i)^(fwd|fw):\s*`)
var rePrefix = regexp.MustCompile(`(?i)^re:\s*`)

// normalizeToken trims whitespace and angle brackets and lowercases a
// Message-ID-shaped token, matching ids.normalizeMessageID's convention.
func normalizeToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSubject strips a leading chain of Re:/Fwd:/Fw: prefixes
// (case-insensitive, with or without trailing space), collapses internal
// whitespace, and lowercases the result (spec.md §4.9 step 3).
func NormalizeSubject(subject string) string {
	s := subject
	for {
		stripped := replyPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// IsReply reports whether a message is a reply: it carries an in-reply-to
// header, or its subject matches the Re: prefix pattern.
func IsReply(inReplyTo, subject string) bool {
	if strings.TrimSpace(inReplyTo) != "" {
		return true
	}
	return rePrefix.MatchString(strings.TrimSpace(subject))
}

// IsForwarded reports whether a message's subject matches the Fwd:/Fw:
// prefix pattern.
func IsForwarded(subject string) bool {
	return fwdPrefix.MatchString(strings.TrimSpace(subject))
}

// DetectThreadId computes the 32-hex conversation id for a message from its
// threading headers, following the priority order in spec.md §4.9:
//  1. references/in-reply-to chain (root = first references token, else
//     in-reply-to)
//  2. normalized subject
//  3. the message's own message-id
//  4. a fresh random id
func DetectThreadId(messageID, inReplyTo string, references []string, subject string) string {
	var root string
	for _, ref := range references {
		normalized := normalizeToken(ref)
		if normalized != "" {
			root = normalized
			break
		}
	}
	if root == "" {
		root = normalizeToken(inReplyTo)
	}
	if root != "" {
		return ids.HashKey("thread-mid:" + root)
	}

	if strings.TrimSpace(subject) != "" {
		return ids.HashKey("thread-subj:" + NormalizeSubject(subject))
	}

	if normalized := normalizeToken(messageID); normalized != "" {
		return ids.HashKey("thread-msg:" + normalized)
	}

	return ids.RandomID()
}

// Result is the outcome of threading a single message (spec.md §4.9 step 6).
type Result struct {
	ThreadID    string
	IsNewThread bool
}

// ProcessMessageForThreading computes message's thread id, creates the
// thread row if absent, links the message into it, and recomputes the
// thread's aggregate metadata.
func ProcessMessageForThreading(db *maildb.DB, message *maildb.Message) (Result, error) {
	threadID := DetectThreadId(message.MessageID, message.InReplyTo, message.References, message.Subject)

	isNew, err := db.CreateThreadIfAbsent(threadID, NormalizeSubject(message.Subject), message.DateReceived, message.DateReceived)
	if err != nil {
		return Result{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "creating thread %q for message %q", threadID, message.ID)
	}

	count, err := db.MessageCountInThread(threadID)
	if err != nil {
		return Result{}, err
	}

	if err := db.LinkMessageToThread(threadID, message.ID, count); err != nil {
		return Result{}, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "linking message %q to thread %q", message.ID, threadID)
	}

	if _, err := db.RecomputeThreadMetadata(threadID); err != nil {
		return Result{}, err
	}

	return Result{ThreadID: threadID, IsNewThread: isNew}, nil
}

// ProcessMessagesForThreading threads every message in the supplied batch,
// in order, by calling ProcessMessageForThreading once per message: two
// messages sharing a thread root always converge to the same thread_id
// (spec.md §5 ordering guarantee). The batch does not run in one
// transaction; each message's changes commit on their own, and on the first
// error it stops and returns the results of the messages already threaded,
// whose changes stay in place.
func ProcessMessagesForThreading(db *maildb.DB, messages []*maildb.Message) ([]Result, error) {
	results := make([]Result, 0, len(messages))
	for _, m := range messages {
		r, err := ProcessMessageForThreading(db, m)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
