package model

// Author is the sender attributed to a feed entry.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FeedEntry is one row of the inbox feed: a summary snapshot of a thread.
// URL is the stable identity of the thread.
type FeedEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`

	// ModifiedAt is an ISO-8601 UTC timestamp. Lexicographic order matches
	// chronological order.
	ModifiedAt string `json:"modified_at"`

	Author Author `json:"author"`
}

// FeedInfo is the parsed inbox feed.
type FeedInfo struct {
	// Email is the account address taken from the feed title.
	Email      string      `json:"email"`
	ModifiedAt string      `json:"modified_at"`
	FullCount  int         `json:"full_count"`
	Entries    []FeedEntry `json:"entries"`
}

// Attachment is a file linked from a message body.
type Attachment struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Size     string `json:"size,omitempty"`
}

// Message is a single message inside a thread.
type Message struct {
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`

	// Time is ISO-8601 UTC, or empty when the page shows no timestamp.
	Time string `json:"time"`

	To          []string     `json:"to"`
	Cc          []string     `json:"cc"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	ContentHTML string       `json:"content_html"`
	ContentText string       `json:"content_text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ThreadDetail is the full content of a thread. MessageCount is the total
// advertised by the page and may exceed len(Messages) when the page elides
// messages in the middle of a long conversation.
type ThreadDetail struct {
	Subject      string    `json:"subject"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// EmailThread is a feed entry merged with its detail. It is the unit the
// engine, notifications and UI operate on.
type EmailThread struct {
	FeedEntry
	ThreadDetail
}

// NewEmailThread merges a feed entry with its fetched detail.
func NewEmailThread(entry FeedEntry, detail ThreadDetail) EmailThread {
	return EmailThread{FeedEntry: entry, ThreadDetail: detail}
}

// ReplyContact identifies who a reply should be addressed to.
type ReplyContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
