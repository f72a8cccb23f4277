package storage

import (
	"context"
	"sync"

	"github.com/nostrvault/nostrvault/internal/common"
)

// MemoryPartition is an in-memory Partition. It backs the session partition
// in every deployment and all three partitions in tests.
type MemoryPartition struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryPartition() *MemoryPartition {
	return &MemoryPartition{data: make(map[string][]byte)}
}

func (p *MemoryPartition) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.data[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (p *MemoryPartition) Set(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	p.data[key] = v
	return nil
}

func (p *MemoryPartition) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.data, key)
	return nil
}

func (p *MemoryPartition) Keys(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.data))
	for k := range p.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (p *MemoryPartition) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = make(map[string][]byte)
	return nil
}
