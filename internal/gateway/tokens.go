package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

var idKeyRe = regexp.MustCompile(`ID_KEY\s*=\s*['"]([^'"]*)['"]`)

// maxRefreshHops bounds how many meta-refresh redirects are followed while
// looking for the ik token.
const maxRefreshHops = 3

// tokenCache holds the per-account ik (page id key) and at (action token)
// values. Entries have no expiry; a failed action invalidates them.
type tokenCache struct {
	g *Gateway

	mu    sync.Mutex
	iks   map[string]string
	ats   map[string]string
	pages map[string]string
}

func newTokenCache(g *Gateway) *tokenCache {
	return &tokenCache{
		g:     g,
		iks:   make(map[string]string),
		ats:   make(map[string]string),
		pages: make(map[string]string),
	}
}

func (c *tokenCache) cached(m map[string]string, n string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := m[n]
	return v, ok
}

func (c *tokenCache) store(m map[string]string, n, v string) {
	c.mu.Lock()
	m[n] = v
	c.mu.Unlock()
}

// invalidate drops both tokens for account n.
func (c *tokenCache) invalidate(n string) {
	c.mu.Lock()
	delete(c.iks, n)
	delete(c.ats, n)
	c.mu.Unlock()
}

// ik returns the id key for account n, scraping it from the web client page
// when it is not cached.
func (c *tokenCache) ik(ctx context.Context, n string) (string, error) {
	if v, ok := c.cached(c.iks, n); ok {
		return v, nil
	}

	page, ok := c.cached(c.pages, n)
	if !ok {
		page = c.g.accountURL(n).String() + "/s/"
	}

	for hop := 0; hop <= maxRefreshHops; hop++ {
		body, err := c.g.client.get(ctx, "ik", page)
		if err != nil {
			return "", fmt.Errorf("%w: id key page: %w", ErrAuthTokenMissing, err)
		}
		if m := idKeyRe.FindSubmatch(body); m != nil && len(m[1]) > 0 {
			c.store(c.iks, n, string(m[1]))
			return string(m[1]), nil
		}

		next, ok := refreshTarget(body, page)
		if !ok {
			break
		}
		c.store(c.pages, n, next)
		page = next
	}
	return "", fmt.Errorf("%w: id key not found", ErrAuthTokenMissing)
}

// refreshTarget resolves the url of a <meta http-equiv="refresh"> tag.
func refreshTarget(body []byte, base string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	content, ok := doc.Find(`meta[http-equiv="refresh"]`).First().Attr("content")
	if !ok {
		return "", false
	}
	idx := strings.Index(strings.ToLower(content), "url=")
	if idx < 0 {
		return "", false
	}
	target := strings.Trim(strings.TrimSpace(content[idx+len("url="):]), `'"`)
	if target == "" {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := baseURL.Parse(target)
	if err != nil {
		return "", false
	}
	return ref.String(), true
}

// at returns the action token for account n: from the cache, the session
// cookie, or the basic HTML client as a last resort.
func (c *tokenCache) at(ctx context.Context, n string) (string, error) {
	if v, ok := c.cached(c.ats, n); ok {
		return v, nil
	}
	if v := c.g.cookieValue(c.g.accountURL(n), atCookie); v != "" {
		c.store(c.ats, n, v)
		return v, nil
	}

	body, err := c.g.client.get(ctx, "at", c.g.accountURL(n).String()+"/h/")
	if err != nil {
		return "", fmt.Errorf("%w: basic html page: %w", ErrAuthTokenMissing, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing basic html page: %w", err)
	}

	if href, ok := doc.Find(`a[href*="at="]`).First().Attr("href"); ok {
		if _, query, found := strings.Cut(href, "?"); found {
			if args, err := url.ParseQuery(query); err == nil && args.Get("at") != "" {
				c.store(c.ats, n, args.Get("at"))
				return args.Get("at"), nil
			}
		}
	}
	if v, ok := doc.Find(`[name="at"]`).First().Attr("value"); ok && v != "" && v != "null" {
		c.store(c.ats, n, v)
		return v, nil
	}
	return "", fmt.Errorf("%w: open Gmail in a browser to refresh the session", ErrAuthTokenMissing)
}
