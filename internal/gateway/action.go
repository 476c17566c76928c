package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/gmail-notifier/internal/extract"
)

// Action is a numeric Gmail thread action code.
type Action int

// Action codes understood by the web client's action endpoint.
const (
	ActionArchive Action = 1
	ActionUnread  Action = 2
	ActionRead    Action = 3
	ActionStar    Action = 5
	ActionUnstar  Action = 6
	ActionSpam    Action = 7
	ActionTrash   Action = 9
)

func (a Action) String() string {
	switch a {
	case ActionArchive:
		return "archive"
	case ActionUnread:
		return "unread"
	case ActionRead:
		return "read"
	case ActionStar:
		return "star"
	case ActionUnstar:
		return "unstar"
	case ActionSpam:
		return "spam"
	case ActionTrash:
		return "trash"
	default:
		return "action_" + strconv.Itoa(int(a))
	}
}

// actionPayload builds the s_jr field the action endpoint expects.
func actionPayload(code Action, threadID, ik string) (string, error) {
	settings := []any{nil, nil, nil, nil, nil, nil, []any{nil, true, false}}
	payload := []any{
		nil,
		[]any{
			[]any{nil, nil, nil, []any{nil, int(code), threadID, threadID, "l:all", []any{}, []any{}, []any{}}},
			settings,
			settings,
		},
		2, nil, nil, nil, ik,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding action payload: %w", err)
	}
	return string(b), nil
}

// action posts code for the thread at threadURL. Success means Gmail
// accepted the request, not that the change is visible in the next feed.
func (g *Gateway) action(ctx context.Context, threadURL string, code Action) error {
	ref, err := extract.ExtractInfo(threadURL)
	if err != nil {
		return err
	}

	at, err := g.tokens.at(ctx, ref.AccountIndex)
	if err != nil {
		return fmt.Errorf("%s: %w", code, err)
	}
	ik, err := g.tokens.ik(ctx, ref.AccountIndex)
	if err != nil {
		return fmt.Errorf("%s: %w", code, err)
	}

	sjr, err := actionPayload(code, ref.ThreadID, ik)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("v", "or")
	q.Set("ik", ik)
	q.Set("at", at)
	q.Set("subui", "chrome")
	q.Set("hl", "en")
	q.Set("ts", strconv.FormatInt(time.Now().UnixMilli(), 10))
	endpoint := g.accountURL(ref.AccountIndex).String() + "/s/?" + q.Encode()

	if _, err := g.client.postForm(ctx, code.String(), endpoint, url.Values{"s_jr": {sjr}}); err != nil {
		// Both tokens are derived again on the next action.
		g.tokens.invalidate(ref.AccountIndex)
		return fmt.Errorf("%s thread %s: %w", code, ref.ThreadID, err)
	}
	g.logger.Debug("gmail action accepted", "action", code.String(), "thread_id", ref.ThreadID)
	return nil
}
