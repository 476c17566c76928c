package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/nhle/gmail-notifier/internal/model"
)

var (
	threadRefRe    = regexp.MustCompile(`u/(\d+).*message_id=([^&]+)`)
	accountIndexRe = regexp.MustCompile(`u[=/](\d+)`)
	messageIDRe    = regexp.MustCompile(`message_id=([^&]+)`)
)

// ThreadRef locates a thread: the account slot it belongs to and its id.
type ThreadRef struct {
	AccountIndex string
	ThreadID     string
}

// ExtractInfo reads the account index and thread id from a feed url such as
// https://mail.google.com/mail/u/0?account_id=x&message_id=19734500f9fb78da.
// The account index defaults to "0" when the url does not name one.
func ExtractInfo(rawURL string) (ThreadRef, error) {
	if m := threadRefRe.FindStringSubmatch(rawURL); m != nil {
		return ThreadRef{AccountIndex: m[1], ThreadID: m[2]}, nil
	}
	m := messageIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ThreadRef{}, fmt.Errorf("%w: %s", ErrThreadRef, rawURL)
	}
	ref := ThreadRef{AccountIndex: "0", ThreadID: m[1]}
	if n := accountIndexRe.FindStringSubmatch(rawURL); n != nil {
		ref.AccountIndex = n[1]
	}
	return ref, nil
}

// MailboxBase returns scheme, host and path of a thread url without its
// query or trailing slash.
func MailboxBase(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing thread url: %w", err)
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/"), nil
}

// ThreadViewURL returns the print-view address of the thread at rawURL.
func ThreadViewURL(rawURL string) (string, error) {
	base, err := MailboxBase(rawURL)
	if err != nil {
		return "", err
	}
	ref, err := ExtractInfo(rawURL)
	if err != nil {
		return "", err
	}
	return base + "/?ui=2&view=pt&search=all&th=" + url.QueryEscape(ref.ThreadID), nil
}

// OpenWebLink returns the address that opens the thread in the Gmail web
// client. Urls without a message id are returned unchanged.
func OpenWebLink(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	id := u.Query().Get("message_id")
	if id == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + "/#inbox/" + id
}

// ParseReplyTo picks the first message in detail not sent by me.
func ParseReplyTo(detail model.ThreadDetail, me string) (model.ReplyContact, bool) {
	for _, m := range detail.Messages {
		if m.SenderEmail != me {
			return model.ReplyContact{Name: m.SenderName, Email: m.SenderEmail}, true
		}
	}
	return model.ReplyContact{}, false
}
