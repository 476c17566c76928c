package model

// Session snapshot keys, shared by every context that hydrates from the
// session store.
const (
	SnapshotKeyLoggedIn = "isLoggedIn"
	SnapshotKeyEmail    = "email"
	SnapshotKeyThreads  = "threads"
	SnapshotKeyNotified = "notifiedEmails"
)

// Snapshot is the engine state published after every change so other
// processes (the status command, a second UI) can render without polling.
type Snapshot struct {
	IsLoggedIn     bool          `json:"isLoggedIn"`
	Email          string        `json:"email"`
	Threads        []EmailThread `json:"threads"`
	NotifiedEmails []string      `json:"notifiedEmails"`
}
