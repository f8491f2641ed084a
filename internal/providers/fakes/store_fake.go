package fakes

import (
	"context"
	"sort"
	"sync"

	"github.com/systmms/dsconf/pkg/secretstore"
)

// FakeStore is an in-memory secretstore.Store.
type FakeStore struct {
	name     string
	priority secretstore.Priority

	mu      sync.Mutex
	secrets map[string]string
	failOn  map[string]error
	calls   map[string]int
}

// NewFakeStore creates an empty store.
func NewFakeStore(name string, priority secretstore.Priority) *FakeStore {
	return &FakeStore{
		name:     name,
		priority: priority,
		secrets:  make(map[string]string),
		failOn:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

// WithSecret seeds a secret.
func (f *FakeStore) WithSecret(key, value string) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[key] = value
	return f
}

// WithError makes Set and Delete of key fail with err.
func (f *FakeStore) WithError(key string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[key] = err
	return f
}

// Calls returns how often method ("Get", "Set", "Delete") was called.
func (f *FakeStore) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Value returns the stored value and whether it exists.
func (f *FakeStore) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.secrets[key]
	return v, ok
}

func (f *FakeStore) Name() string                   { return f.name }
func (f *FakeStore) Priority() secretstore.Priority { return f.priority }

func (f *FakeStore) Get(_ context.Context, key, def string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Get"]++
	if v, ok := f.secrets[key]; ok && v != "" {
		return v
	}
	return def
}

func (f *FakeStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Set"]++
	if err := f.failOn[key]; err != nil {
		return secretstore.NewStoreError(f.name, "set", "fake failure", err)
	}
	f.secrets[key] = value
	return nil
}

func (f *FakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Delete"]++
	if err := f.failOn[key]; err != nil {
		return secretstore.NewStoreError(f.name, "delete", "fake failure", err)
	}
	delete(f.secrets, key)
	return nil
}

// Names implements secretstore.Lister. FakeStore has no hidden entries.
func (f *FakeStore) Names(_ context.Context, _ bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.secrets))
	for k := range f.secrets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}
