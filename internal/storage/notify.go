package storage

import (
	"encoding/json"
	"sync"
)

// Listener receives the new encoded value for a key, or nil once deleted.
type Listener func(key string, value json.RawMessage)

// notifier is a per-key pub-sub used by both store implementations.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]Listener
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[string]map[int]Listener)}
}

func (n *notifier) subscribe(key string, fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.listeners[key] == nil {
		n.listeners[key] = make(map[int]Listener)
	}
	n.listeners[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners[key], id)
			if len(n.listeners[key]) == 0 {
				delete(n.listeners, key)
			}
		})
	}
}

// publish runs every listener for key synchronously, outside the lock.
func (n *notifier) publish(key string, value json.RawMessage) {
	n.mu.Lock()
	fns := make([]Listener, 0, len(n.listeners[key]))
	for _, fn := range n.listeners[key] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(key, value)
	}
}
