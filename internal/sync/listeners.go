package sync

import (
	"context"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/nhle/gmail-notifier/internal/model"
)

// Listener observes the thread list after every change. It runs on the
// notifying goroutine and receives its own copy of the list; the threads'
// nested slices are shared and must not be modified.
type Listener func(ctx context.Context, threads []model.EmailThread)

// Handle identifies a registered listener.
type Handle string

type registeredListener struct {
	handle Handle
	fn     Listener
}

type listenerRegistry struct {
	mu        gosync.Mutex
	listeners []registeredListener
}

func (r *listenerRegistry) add(fn Listener) Handle {
	h := Handle(uuid.New().String())
	r.mu.Lock()
	r.listeners = append(r.listeners, registeredListener{handle: h, fn: fn})
	r.mu.Unlock()
	return h
}

func (r *listenerRegistry) remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.handle == h {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns the listeners registered right now. Changes made while a
// notify is in progress apply from the next notify on.
func (r *listenerRegistry) snapshot() []registeredListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registeredListener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// On registers fn to run after every change, after the listeners registered
// before it.
func (e *Engine) On(fn Listener) Handle {
	return e.listeners.add(fn)
}

// Off unregisters the listener behind h. It reports whether h was registered.
func (e *Engine) Off(h Handle) bool {
	return e.listeners.remove(h)
}
