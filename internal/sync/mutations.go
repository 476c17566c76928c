package sync

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/model"
)

// effect is the remote half of a mutation.
type effect func(ctx context.Context) error

// MarkAsRead drops url from the list and marks the thread read in Gmail.
func (e *Engine) MarkAsRead(ctx context.Context, url string) {
	e.removeThreads(url)
	e.notify(ctx)
	e.runEffect(CmdMarkAsRead, url, func(ctx context.Context) error {
		return e.gw.MarkRead(ctx, url)
	})
}

// MarkAsUnread forgets that url was viewed and marks it unread in Gmail.
func (e *Engine) MarkAsUnread(ctx context.Context, url string) {
	e.mu.Lock()
	delete(e.viewed, url)
	e.mu.Unlock()

	e.notify(ctx)
	e.runEffect(CmdMarkAsUnread, url, func(ctx context.Context) error {
		return e.gw.MarkUnread(ctx, url)
	})
}

// Viewed records that the user opened url. The thread stays in the list
// until ClearViewed or Refresh.
func (e *Engine) Viewed(ctx context.Context, url string) {
	e.mu.Lock()
	e.viewed[url] = struct{}{}
	e.mu.Unlock()

	e.notify(ctx)
	e.runEffect(CmdViewed, url, func(ctx context.Context) error {
		return e.gw.MarkRead(ctx, url)
	})
}

// MarkAllAsRead drops every url from the list and marks each read in Gmail.
// Any failed request triggers one corrective fetch.
func (e *Engine) MarkAllAsRead(ctx context.Context, urls []string) {
	urls = slices.Clone(urls)
	e.removeThreads(urls...)
	e.notify(ctx)
	e.runEffect(CmdMarkAllAsRead, "", func(ctx context.Context) error {
		var g errgroup.Group
		for _, url := range urls {
			g.Go(func() error { return e.gw.MarkRead(ctx, url) })
		}
		return g.Wait()
	})
}

// Archive drops url from the list and archives the thread in Gmail.
func (e *Engine) Archive(ctx context.Context, url string) {
	e.removeThreads(url)
	e.notify(ctx)
	e.runEffect(CmdArchive, url, func(ctx context.Context) error {
		return e.gw.Archive(ctx, url)
	})
}

// Delete drops url from the list and moves the thread to trash.
func (e *Engine) Delete(ctx context.Context, url string) {
	e.removeThreads(url)
	e.notify(ctx)
	e.runEffect(CmdDeleteMail, url, func(ctx context.Context) error {
		return e.gw.Delete(ctx, url)
	})
}

// MarkAsSpam drops url from the list and reports the thread as spam.
func (e *Engine) MarkAsSpam(ctx context.Context, url string) {
	e.removeThreads(url)
	e.notify(ctx)
	e.runEffect(CmdMarkAsSpam, url, func(ctx context.Context) error {
		return e.gw.MarkSpam(ctx, url)
	})
}

// Star stars the thread in Gmail. The local list does not track stars.
func (e *Engine) Star(ctx context.Context, url string) {
	e.notify(ctx)
	e.runEffect(CmdStar, url, func(ctx context.Context) error {
		return e.gw.Star(ctx, url)
	})
}

// Unstar removes the star from the thread in Gmail.
func (e *Engine) Unstar(ctx context.Context, url string) {
	e.notify(ctx)
	e.runEffect(CmdUnstar, url, func(ctx context.Context) error {
		return e.gw.Unstar(ctx, url)
	})
}

// Refresh forgets viewed threads and refetches everything.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	clear(e.viewed)
	e.mu.Unlock()
	return e.FetchThreads(ctx, true)
}

// ClearViewed evicts every viewed thread from the list and empties the
// viewed set. Hosts call it when a UI session ends.
func (e *Engine) ClearViewed(ctx context.Context) {
	e.mu.Lock()
	kept := e.threads[:0:0]
	for _, t := range e.threads {
		if _, ok := e.viewed[t.URL]; !ok {
			kept = append(kept, t)
		}
	}
	e.threads = kept
	clear(e.viewed)
	e.mu.Unlock()

	e.notify(ctx)
}

// Wait blocks until every background mutation, including any corrective
// fetch it triggered, has finished.
func (e *Engine) Wait() {
	e.effects.Wait()
}

func (e *Engine) removeThreads(urls ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threads = slices.DeleteFunc(slices.Clone(e.threads), func(t model.EmailThread) bool {
		return slices.Contains(urls, t.URL)
	})
}

type queuedEffect struct {
	cmd string
	url string
	fn  effect
}

// runEffect queues fn behind earlier mutations and returns without waiting.
// Effects reach Gmail in the order they were queued.
func (e *Engine) runEffect(cmd, url string, fn effect) {
	e.effects.Add(1)

	e.effectMu.Lock()
	e.queue = append(e.queue, queuedEffect{cmd: cmd, url: url, fn: fn})
	start := !e.draining
	e.draining = true
	e.effectMu.Unlock()

	if start {
		go e.drainEffects()
	}
}

func (e *Engine) drainEffects() {
	for {
		e.effectMu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.effectMu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue[0] = queuedEffect{}
		e.queue = e.queue[1:]
		e.effectMu.Unlock()

		e.applyEffect(next)
		e.effects.Done()
	}
}

// applyEffect runs q detached from the caller's cancellation. A failure is
// logged and answered with one full fetch cycle instead of a retry.
func (e *Engine) applyEffect(q queuedEffect) {
	ctx, cancel := context.WithTimeout(context.Background(), e.effectTimeout)
	defer cancel()

	err := q.fn(ctx)
	if err == nil {
		return
	}

	e.metrics.IncMutationFailure(q.cmd)
	attrs := []any{logging.Command(q.cmd), logging.Err(err)}
	if q.url != "" {
		attrs = append(attrs, logging.ThreadURL(q.url))
	}
	e.logger.Warn("gmail mutation failed, reconciling", attrs...)

	fetchCtx, cancelFetch := context.WithTimeout(context.Background(), e.effectTimeout)
	defer cancelFetch()
	if err := e.FetchThreads(fetchCtx, false); err != nil {
		e.logger.Error("reconciling fetch failed", logging.Command(q.cmd), logging.Err(err))
	}
}
