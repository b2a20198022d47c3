package application

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// subscriptionHandler fans out snapshots to the subscribers. A subscriber
// that is not keeping up only gets the latest snapshot.
type subscriptionHandler struct {
	mu          sync.Mutex
	subscribers map[chan Snapshot]struct{}
	stopped     bool
	done        chan struct{}
	watchers    sync.WaitGroup
}

func newSubscriptionHandler() *subscriptionHandler {
	return &subscriptionHandler{
		subscribers: make(map[chan Snapshot]struct{}),
		done:        make(chan struct{}),
	}
}

func (h *subscriptionHandler) subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	log.Debugf("added subscriber, %d in total", len(h.subscribers))

	h.watchers.Add(1)
	go func() {
		defer h.watchers.Done()
		select {
		case <-ctx.Done():
			h.unsubscribe(ch)
		case <-h.done:
		}
	}()
	return ch
}

func (h *subscriptionHandler) unsubscribe(ch chan Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; !ok {
		return
	}
	delete(h.subscribers, ch)
	close(ch)
}

func (h *subscriptionHandler) publish(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// drop the stale snapshot
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// stop closes every subscription and returns once no subscriber is watched
// anymore.
func (h *subscriptionHandler) stop() {
	h.mu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()

	h.watchers.Wait()
}
