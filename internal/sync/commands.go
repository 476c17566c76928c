package sync

import (
	"context"
	"errors"
	"fmt"
)

// Command names accepted by Dispatch.
const (
	CmdArchive       = "archive"
	CmdMarkAsRead    = "markAsRead"
	CmdMarkAsUnread  = "markAsUnread"
	CmdMarkAsSpam    = "markAsSpam"
	CmdDeleteMail    = "deleteMail"
	CmdViewed        = "viewed"
	CmdMarkAllAsRead = "markAllAsRead"
	CmdStar          = "star"
	CmdUnstar        = "unstar"
)

// ErrUnknownCommand is returned by Dispatch for a command it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a user action sent from a host shell. URLs is used by
// markAllAsRead, URL by every other command.
type Command struct {
	Cmd  string   `json:"cmd"`
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

// Dispatch applies c to the engine. It returns once the local change has
// been notified; the Gmail request continues in the background.
func (e *Engine) Dispatch(ctx context.Context, c Command) error {
	switch c.Cmd {
	case CmdArchive:
		e.Archive(ctx, c.URL)
	case CmdMarkAsRead:
		e.MarkAsRead(ctx, c.URL)
	case CmdMarkAsUnread:
		e.MarkAsUnread(ctx, c.URL)
	case CmdMarkAsSpam:
		e.MarkAsSpam(ctx, c.URL)
	case CmdDeleteMail:
		e.Delete(ctx, c.URL)
	case CmdViewed:
		e.Viewed(ctx, c.URL)
	case CmdMarkAllAsRead:
		e.MarkAllAsRead(ctx, c.URLs)
	case CmdStar:
		e.Star(ctx, c.URL)
	case CmdUnstar:
		e.Unstar(ctx, c.URL)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Cmd)
	}
	return nil
}
