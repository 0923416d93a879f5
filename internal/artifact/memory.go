package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs. Keys are
// canonicalized so that a document written under s3://bucket/key is readable
// under the same URL.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func canonical(raw string) (string, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

func (s *MemoryStore) Get(ctx context.Context, url string) ([]byte, error) {
	key, err := canonical(url)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("artifact %q: %w", url, ErrNotFound)
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, url string, body []byte) error {
	key, err := canonical(url)
	if err != nil {
		return err
	}
	stored := make([]byte, len(body))
	copy(stored, body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = stored
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefixURL string) ([]string, error) {
	prefix, err := canonical(prefixURL)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
