package model

import "time"

// Notification represents an alert surfaced to the user about a thread
// that appeared in the inbox.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// ThreadURL links this notification to the originating thread.
	ThreadURL string `json:"thread_url" db:"thread_url"`

	// Title is the thread title at the time of notification.
	Title string `json:"title" db:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
