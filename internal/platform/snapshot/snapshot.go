// Package snapshot persists store state as named JSON buckets. A backend
// always holds the whole state; Save replaces every bucket it is given in one
// atomic write.
package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backend loads and saves a bucket/payload snapshot.
type Backend interface {
	// Load returns every stored bucket. An empty map means nothing has been
	// saved yet.
	Load(ctx context.Context) (map[string][]byte, error)
	// Save writes all buckets atomically.
	Save(ctx context.Context, buckets map[string][]byte) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DSN      string
	RedisURL string
	MaxConns int32
	MinConns int32
}

// Open constructs the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return NewSQLite(ctx, opts.DSN)
	case BackendPostgres:
		return NewPostgres(ctx, opts.DSN, opts.MaxConns, opts.MinConns)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}

// Memory keeps the snapshot in process memory. It is the default and does
// not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string][]byte
	saves   int
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyBuckets(m.buckets), nil
}

func (m *Memory) Save(ctx context.Context, buckets map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range copyBuckets(buckets) {
		m.buckets[k] = v
	}
	m.saves++
	return nil
}

// Saves reports how many successful Save calls the backend has seen.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func copyBuckets(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
