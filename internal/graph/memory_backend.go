package graph

import "sync"

// MemoryBackend is an ephemeral Collaborator: a plain map with no
// durability, selected when config disables radisk/localStorage. Grounded
// on the teacher's in-memory map plus RWMutex concurrency pattern
// (store/store.go), minus the WAL/snapshot machinery which belongs to a
// durable backend instead.
type MemoryBackend struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewMemoryBackend creates an empty ephemeral backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{nodes: make(map[string]*Node)}
}

func (b *MemoryBackend) Get(soul string) (*Node, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[soul]
	if !ok {
		return nil, false, nil
	}
	return n.Clone(), true, nil
}

func (b *MemoryBackend) Put(soul string, node *Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[soul] = node.Clone()
	return nil
}

func (b *MemoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.nodes))
	for k := range b.nodes {
		keys = append(keys, k)
	}
	return keys, nil
}

func (b *MemoryBackend) Close() error { return nil }
