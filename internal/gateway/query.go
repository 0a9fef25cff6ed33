package gateway

import (
	"context"
	"sync"

	"terminal-core/internal/errs"
	"terminal-core/pkg/i18n"
)

// Query keys for the waiter registry.
const (
	queryAccount      = "account"
	queryPosition     = "position"
	queryOrder        = "order"
	queryTrade        = "trade"
	querySettlement   = "settlement"
	confirmSettlement = "settlement_confirm"
)

// waiters pairs an outgoing query with its terminal callback. One in-flight
// waiter per key; re-arming replaces (and releases) the previous one.
type waiters struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newWaiters() *waiters {
	return &waiters{m: make(map[string]chan struct{})}
}

func (w *waiters) arm(key string) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.m[key]; ok {
		close(old)
	}
	ch := make(chan struct{})
	w.m[key] = ch
	return ch
}

func (w *waiters) fire(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.m[key]; ok {
		delete(w.m, key)
		close(ch)
	}
}

// awaitQuery issues a native query and blocks until its last response chunk
// arrives or ctx expires.
func (f *Facade) awaitQuery(ctx context.Context, key string, issue func() int) error {
	if !f.session.IsLoggedIn() {
		return errs.New(errs.KindState, "%s", i18n.T("session.not_logged_in"))
	}
	done := f.waiters.arm(key)
	if rc := issue(); rc != 0 {
		f.waiters.fire(key)
		return errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc))
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("query.timeout", key))
	}
}
