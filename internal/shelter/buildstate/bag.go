// Package buildstate persists build progress in a shared key-value bag.
package buildstate

import (
	"sort"
	"strings"
	"sync"
)

// Bag is the shared key-value state an agent carries across task invocations.
type Bag interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Delete(keys ...string) error
	// Keys lists keys with the given prefix in sorted order.
	Keys(prefix string) ([]string, error)
}

// MemBag is an in-process Bag.
type MemBag struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemBag() *MemBag { return &MemBag{m: map[string]string{}} }

func (b *MemBag) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[key]
	return v, ok, nil
}

func (b *MemBag) Put(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
	return nil
}

func (b *MemBag) Delete(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.m, k)
	}
	return nil
}

func (b *MemBag) Keys(prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.m))
	for k := range b.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len is the number of stored keys.
func (b *MemBag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}
