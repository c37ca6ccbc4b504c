package printing

import "sync"

// sandboxInbox queues sandbox events for the control goroutine without
// bounding them. Sandboxes emit from their own goroutines and must never
// wait on the loop, which may itself be waiting on a sandbox.
type sandboxInbox struct {
	mu    sync.Mutex
	queue []msgSandbox
	ready chan struct{}
}

func newSandboxInbox() *sandboxInbox {
	return &sandboxInbox{ready: make(chan struct{}, 1)}
}

// push appends m and wakes the loop
func (b *sandboxInbox) push(m msgSandbox) {
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// drain returns every queued event in arrival order
func (b *sandboxInbox) drain() []msgSandbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.queue
	b.queue = nil
	return queue
}

