// Package gateway talks to Gmail through the surfaces a signed-in browser
// uses: the Atom inbox feed, the print view of a thread and the action
// endpoint behind the web client. Authentication is the session's cookie
// header; the per-account action tokens are derived from it and cached.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/gmail-notifier/internal/extract"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/model"
)

// atCookie is the session cookie Gmail issues to signed-in web clients.
const atCookie = "GMAIL_AT"

// Options configures a Gateway.
type Options struct {
	// MailboxURL is the account root, e.g. https://mail.google.com/mail/u/0.
	MailboxURL string

	// Cookie is the Cookie header of a signed-in browser session.
	Cookie string

	// Timeout bounds every HTTP exchange. Zero means 30s.
	Timeout time.Duration

	// ReadOnArchive marks a thread read before archiving it.
	ReadOnArchive bool

	Breaker model.BreakerConfig
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// Gateway is the remote side of the engine: it fetches feed and thread
// markup and issues mutation commands.
type Gateway struct {
	mailbox       *url.URL
	jar           http.CookieJar
	client        *client
	tokens        *tokenCache
	readOnArchive bool
	logger        *slog.Logger
}

// New creates a Gateway for the account at opts.MailboxURL.
func New(opts Options) (*Gateway, error) {
	mailbox, err := url.Parse(strings.TrimRight(opts.MailboxURL, "/"))
	if err != nil || mailbox.Scheme == "" || mailbox.Host == "" {
		return nil, fmt.Errorf("invalid mailbox url %q", opts.MailboxURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if opts.Cookie != "" {
		cookies, err := http.ParseCookie(opts.Cookie)
		if err != nil {
			return nil, fmt.Errorf("parsing session cookie: %w", err)
		}
		for _, c := range cookies {
			c.Path = "/"
		}
		jar.SetCookies(mailbox, cookies)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bs := breakerSettings{
		name:        "gmail",
		maxFailures: opts.Breaker.MaxFailures,
		openTimeout: opts.Breaker.OpenTimeout,
	}
	if bs.maxFailures == 0 {
		bs.maxFailures = 5
	}

	hc := &http.Client{
		Jar:       jar,
		Timeout:   timeout,
		Transport: opts.Transport,
	}

	g := &Gateway{
		mailbox:       mailbox,
		jar:           jar,
		client:        newClient(hc, bs, opts.Metrics, logger),
		readOnArchive: opts.ReadOnArchive,
		logger:        logger,
	}
	g.tokens = newTokenCache(g)
	return g, nil
}

// MailboxURL returns the account root the gateway polls.
func (g *Gateway) MailboxURL() string {
	return g.mailbox.String()
}

// accountURL returns the root of account slot n on the gateway's host.
func (g *Gateway) accountURL(n string) *url.URL {
	return &url.URL{Scheme: g.mailbox.Scheme, Host: g.mailbox.Host, Path: "/mail/u/" + n}
}

// cookieValue returns the named cookie the jar would send to u.
func (g *Gateway) cookieValue(u *url.URL, name string) string {
	for _, c := range g.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// CheckLoginStatus reports whether the session carries Gmail's session
// cookie. It does not touch the network.
func (g *Gateway) CheckLoginStatus(_ context.Context) (bool, error) {
	return g.cookieValue(g.mailbox, atCookie) != "", nil
}

// GetFeed returns the raw inbox Atom feed.
func (g *Gateway) GetFeed(ctx context.Context) (string, error) {
	feedURL := g.mailbox.String() + "/feed/atom?t=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	body, err := g.client.get(ctx, "feed", feedURL)
	if err != nil {
		return "", fmt.Errorf("fetching feed: %w", err)
	}
	return string(body), nil
}

// GetThreadDetail returns the raw print view of the thread at threadURL.
func (g *Gateway) GetThreadDetail(ctx context.Context, threadURL string) (string, error) {
	viewURL, err := extract.ThreadViewURL(threadURL)
	if err != nil {
		return "", err
	}
	body, err := g.client.get(ctx, "thread", viewURL)
	if err != nil {
		return "", fmt.Errorf("fetching thread: %w", err)
	}
	return string(body), nil
}

// MarkRead marks the thread read.
func (g *Gateway) MarkRead(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionRead)
}

// MarkUnread marks the thread unread.
func (g *Gateway) MarkUnread(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionUnread)
}

// Archive removes the thread from the inbox, marking it read first when the
// gateway is configured to.
func (g *Gateway) Archive(ctx context.Context, threadURL string) error {
	if g.readOnArchive {
		if err := g.action(ctx, threadURL, ActionRead); err != nil {
			return err
		}
	}
	return g.action(ctx, threadURL, ActionArchive)
}

// Delete moves the thread to the trash.
func (g *Gateway) Delete(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionTrash)
}

// MarkSpam reports the thread as spam.
func (g *Gateway) MarkSpam(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionSpam)
}

// Star stars the thread.
func (g *Gateway) Star(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionStar)
}

// Unstar removes the thread's star.
func (g *Gateway) Unstar(ctx context.Context, threadURL string) error {
	return g.action(ctx, threadURL, ActionUnstar)
}
