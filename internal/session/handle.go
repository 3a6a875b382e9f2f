package session

import (
	"context"
	"sync"
	"time"

	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// handle is one live platform client plus the lease guarding calls into it.
// Once closed, no new calls may start; drain waits for the running ones.
type handle struct {
	gen    uint64
	client platform.Client

	// ctx bounds calls the manager makes on its own behalf, such as media
	// downloads for incoming messages. Teardown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// loggedIn is set once the device was paired; only the actor touches it
	loggedIn bool

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func newHandle(ctx context.Context, gen uint64, client platform.Client) *handle {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &handle{gen: gen, client: client, ctx: hctx, cancel: cancel}
}

func (h *handle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.inflight.Add(1)
	return true
}

func (h *handle) release() {
	h.inflight.Done()
}

func (h *handle) close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
}

// drain reports whether all in-flight calls finished within timeout
func (h *handle) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
