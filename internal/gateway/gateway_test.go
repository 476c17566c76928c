package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/model"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?><feed version="0.3"><title>Gmail - Inbox for me@example.com</title><fullcount>0</fullcount><modified>2025-06-03T09:23:46Z</modified></feed>`

type postedAction struct {
	Code int
	IK   string
	AT   string
}

// fakeGmail serves the Gmail surfaces the gateway uses.
type fakeGmail struct {
	mu          sync.Mutex
	idKeyPage   string
	basicPage   string
	actionCode  int
	actions     []postedAction
	ikFetches   int
	atFetches   int
	feedCookies []string
	threadQuery string
}

func newFakeGmail(t *testing.T) (*fakeGmail, *httptest.Server) {
	f := &fakeGmail{
		idKeyPage:  `<html><script>var GLOBALS=[];ID_KEY = 'ik1';</script></html>`,
		basicPage:  `<html><body><a href="?v=prg&amp;at=at-from-page&amp;s=a">refresh</a></body></html>`,
		actionCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mail/u/0/feed/atom", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if c, err := r.Cookie("GMAIL_AT"); err == nil {
			f.feedCookies = append(f.feedCookies, c.Value)
		}
		f.mu.Unlock()
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		_, _ = w.Write([]byte(testFeed))
	})
	mux.HandleFunc("GET /mail/u/0/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.threadQuery = r.URL.RawQuery
		f.mu.Unlock()
		_, _ = w.Write([]byte(`<html><title>Gmail - Hi</title></html>`))
	})
	mux.HandleFunc("GET /mail/u/0/s/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.ikFetches++
		page := f.idKeyPage
		f.mu.Unlock()
		if r.URL.Query().Get("redirected") == "1" {
			page = `<html><script>ID_KEY="ik-after-refresh"</script></html>`
		}
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("POST /mail/u/0/s/", func(w http.ResponseWriter, r *http.Request) {
		var payload []any
		if !assert.NoError(t, r.ParseForm()) ||
			!assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("s_jr")), &payload)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		inner := payload[1].([]any)[0].([]any)[3].([]any)

		f.mu.Lock()
		f.actions = append(f.actions, postedAction{
			Code: int(inner[1].(float64)),
			IK:   r.URL.Query().Get("ik"),
			AT:   r.URL.Query().Get("at"),
		})
		code := f.actionCode
		f.mu.Unlock()
		w.WriteHeader(code)
	})
	mux.HandleFunc("GET /mail/u/0/h/", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.atFetches++
		page := f.basicPage
		f.mu.Unlock()
		_, _ = w.Write([]byte(page))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGmail) set(fn func(f *fakeGmail)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGmail) posted() []postedAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedAction(nil), f.actions...)
}

func (f *fakeGmail) fetches() (ik, at int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ikFetches, f.atFetches
}

func newTestGateway(t *testing.T, srv *httptest.Server, cookie string, mutate ...func(*Options)) *Gateway {
	t.Helper()
	opts := Options{
		MailboxURL: srv.URL + "/mail/u/0",
		Cookie:     cookie,
		Timeout:    5 * time.Second,
		Breaker:    model.BreakerConfig{MaxFailures: 3, OpenTimeout: time.Minute},
		Logger:     logging.Discard(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	g, err := New(opts)
	require.NoError(t, err)
	return g
}

func threadURL(srv *httptest.Server) string {
	return srv.URL + "/mail/u/0?account_id=me@example.com&message_id=abc123&view=conv&extsrc=atom"
}

func TestNew_InvalidMailbox(t *testing.T) {
	_, err := New(Options{MailboxURL: "not a url"})
	assert.Error(t, err)
}

func TestCheckLoginStatus(t *testing.T) {
	_, srv := newFakeGmail(t)

	ok, err := newTestGateway(t, srv, "GMAIL_AT=tok; SID=s1").CheckLoginStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newTestGateway(t, srv, "SID=s1").CheckLoginStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = newTestGateway(t, srv, "").CheckLoginStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetFeed_SendsSessionCookie(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok; SID=s1")

	body, err := g.GetFeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testFeed, body)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"tok"}, f.feedCookies)
}

func TestGetThreadDetail_RequestsPrintView(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	body, err := g.GetThreadDetail(context.Background(), threadURL(srv))
	require.NoError(t, err)
	assert.Contains(t, body, "Gmail - Hi")
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "ui=2&view=pt&search=all&th=abc123", f.threadQuery)
}

func TestActions_PostCodesWithTokens(t *testing.T) {
	tests := []struct {
		name string
		call func(*Gateway, context.Context, string) error
		code int
	}{
		{"read", (*Gateway).MarkRead, 3},
		{"unread", (*Gateway).MarkUnread, 2},
		{"archive", (*Gateway).Archive, 1},
		{"delete", (*Gateway).Delete, 9},
		{"spam", (*Gateway).MarkSpam, 7},
		{"star", (*Gateway).Star, 5},
		{"unstar", (*Gateway).Unstar, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeGmail(t)
			g := newTestGateway(t, srv, "GMAIL_AT=tok")

			require.NoError(t, tt.call(g, context.Background(), threadURL(srv)))
			assert.Equal(t, []postedAction{{Code: tt.code, IK: "ik1", AT: "tok"}}, f.posted())
		})
	}
}

func TestArchive_ReadOnArchive(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok", func(o *Options) { o.ReadOnArchive = true })

	require.NoError(t, g.Archive(context.Background(), threadURL(srv)))
	actions := f.posted()
	require.Len(t, actions, 2)
	assert.Equal(t, 3, actions[0].Code)
	assert.Equal(t, 1, actions[1].Code)
}

func TestTokens_CachedAcrossActions(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	require.NoError(t, g.MarkRead(context.Background(), threadURL(srv)))
	require.NoError(t, g.MarkUnread(context.Background(), threadURL(srv)))
	ik, _ := f.fetches()
	assert.Equal(t, 1, ik)
}

func TestTokens_FollowMetaRefresh(t *testing.T) {
	f, srv := newFakeGmail(t)
	f.set(func(f *fakeGmail) {
		f.idKeyPage = `<html><head><meta http-equiv="refresh" content="0;URL=/mail/u/0/s/?redirected=1"></head></html>`
	})
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	require.NoError(t, g.MarkRead(context.Background(), threadURL(srv)))
	assert.Equal(t, "ik-after-refresh", f.posted()[0].IK)
	ik, _ := f.fetches()
	assert.Equal(t, 2, ik)
}

func TestTokens_AtFromBasicHTMLPage(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "SID=s1")

	require.NoError(t, g.MarkRead(context.Background(), threadURL(srv)))
	assert.Equal(t, "at-from-page", f.posted()[0].AT)
	_, at := f.fetches()
	assert.Equal(t, 1, at)
}

func TestTokens_AtFromHiddenInput(t *testing.T) {
	f, srv := newFakeGmail(t)
	f.set(func(f *fakeGmail) {
		f.basicPage = `<html><form><input type="hidden" name="at" value="at-input"></form></html>`
	})
	g := newTestGateway(t, srv, "SID=s1")

	require.NoError(t, g.MarkRead(context.Background(), threadURL(srv)))
	assert.Equal(t, "at-input", f.posted()[0].AT)
}

func TestTokens_Missing(t *testing.T) {
	t.Run("no id key", func(t *testing.T) {
		f, srv := newFakeGmail(t)
		f.set(func(f *fakeGmail) { f.idKeyPage = `<html></html>` })
		g := newTestGateway(t, srv, "GMAIL_AT=tok")

		err := g.MarkRead(context.Background(), threadURL(srv))
		assert.ErrorIs(t, err, ErrAuthTokenMissing)
		assert.Empty(t, f.posted())
	})
	t.Run("null at input", func(t *testing.T) {
		f, srv := newFakeGmail(t)
		f.set(func(f *fakeGmail) { f.basicPage = `<html><input name="at" value="null"></html>` })
		g := newTestGateway(t, srv, "SID=s1")

		err := g.MarkRead(context.Background(), threadURL(srv))
		assert.ErrorIs(t, err, ErrAuthTokenMissing)
	})
}

func TestAction_FailureInvalidatesTokens(t *testing.T) {
	f, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	f.set(func(f *fakeGmail) { f.actionCode = http.StatusBadRequest })
	err := g.MarkRead(context.Background(), threadURL(srv))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.NotContains(t, err.Error(), "tok", "action tokens must not leak into errors")

	f.set(func(f *fakeGmail) { f.actionCode = http.StatusOK })
	require.NoError(t, g.MarkRead(context.Background(), threadURL(srv)))
	ik, _ := f.fetches()
	assert.Equal(t, 2, ik)
}

func TestAction_BadThreadURL(t *testing.T) {
	_, srv := newFakeGmail(t)
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	assert.Error(t, g.MarkRead(context.Background(), srv.URL+"/mail/u/0"))
}

func TestActionPayload(t *testing.T) {
	got, err := actionPayload(ActionArchive, "abc", "ik1")
	require.NoError(t, err)
	assert.Equal(t,
		`[null,[[null,null,null,[null,1,"abc","abc","l:all",[],[],[]]],[null,null,null,null,null,null,[null,true,false]],[null,null,null,null,null,null,[null,true,false]]],2,null,null,null,"ik1"]`,
		got)
}

func TestClient_AuthErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		g := newTestGateway(t, srv, "GMAIL_AT=tok")

		_, err := g.GetFeed(context.Background())
		assert.True(t, IsAuthError(err), "status %d", status)
		srv.Close()
	}
}

func TestClient_SignInRedirectIsAuthError(t *testing.T) {
	signIn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("sign in"))
	}))
	defer signIn.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://accounts.example.com/ServiceLogin", http.StatusFound)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv, "GMAIL_AT=tok", func(o *Options) {
		o.Transport = rewriteHost{host: "accounts.example.com", addr: signIn.Listener.Addr().String()}
	})

	_, err := g.GetFeed(context.Background())
	assert.True(t, IsAuthError(err))
}

// rewriteHost sends requests for host to addr while keeping the original
// request on the response.
type rewriteHost struct {
	host string
	addr string
}

func (rh rewriteHost) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Hostname() != rh.host {
		return http.DefaultTransport.RoundTrip(r)
	}
	out := r.Clone(r.Context())
	out.URL.Host = rh.addr
	resp, err := http.DefaultTransport.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	resp.Request = r
	return resp, nil
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	body, err := g.GetFeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testFeed, body)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	m := metrics.New()
	g := newTestGateway(t, srv, "GMAIL_AT=tok", func(o *Options) { o.Metrics = m })

	for i := 0; i < 3; i++ {
		_, err := g.GetFeed(context.Background())
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
	}

	_, err := g.GetFeed(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestClient_AuthErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	g := newTestGateway(t, srv, "GMAIL_AT=tok")

	for i := 0; i < 5; i++ {
		_, err := g.GetFeed(context.Background())
		assert.True(t, IsAuthError(err))
	}
}
