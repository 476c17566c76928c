package notify

import (
	"context"
	"strconv"

	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/sync"
)

// UnreadSource reports threads the user has not opened yet.
type UnreadSource interface {
	GetUnreadThreads() []model.EmailThread
}

// BadgeLabel renders an unread count the way the toolbar badge shows it:
// empty for zero, the decimal count otherwise.
func BadgeLabel(unread int) string {
	if unread == 0 {
		return ""
	}
	return strconv.Itoa(unread)
}

// BadgeListener returns a listener that passes the badge label to set after
// every change.
func BadgeListener(src UnreadSource, set func(label string)) sync.Listener {
	return func(_ context.Context, _ []model.EmailThread) {
		set(BadgeLabel(len(src.GetUnreadThreads())))
	}
}
