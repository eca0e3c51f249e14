package session

import (
	"context"
	"fmt"
	"io"

	"github.com/nebulaglass/nebula-client/pkg/config"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Open builds the store selected by cfg.Session.Backend. The returned closer
// releases backend resources and is never nil.
func Open(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Session.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Session.File, cfg.Session.Key), nopCloser{}, nil
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case BackendRedis:
		client, err := NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		store := NewRedisStore(client, cfg.Session.Key)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Instrumented counts the operations of a store by backend and outcome
type Instrumented struct {
	Store
	backend string
	metrics *metrics.Metrics
}

// WithMetrics wraps store. A nil metrics value disables recording.
func WithMetrics(store Store, backend string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Store: store, backend: backend, metrics: m}
}

// Get implements Store
func (s *Instrumented) Get(ctx context.Context) (string, error) {
	token, err := s.Store.Get(ctx)
	s.metrics.RecordSessionOperation(s.backend, "get", err)
	return token, err
}

// Set implements Store
func (s *Instrumented) Set(ctx context.Context, token string) error {
	err := s.Store.Set(ctx, token)
	s.metrics.RecordSessionOperation(s.backend, "set", err)
	return err
}

// Clear implements Store
func (s *Instrumented) Clear(ctx context.Context) error {
	err := s.Store.Clear(ctx)
	s.metrics.RecordSessionOperation(s.backend, "clear", err)
	return err
}
