package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/nebulaglass/nebula-client/pkg/config"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
)

// storeSuite runs the same contract against every Store implementation
type storeSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
}

func (s *storeSuite) TestEmptyByDefault() {
	store := s.newStore(s.T())

	token, err := store.Get(context.Background())
	s.Require().NoError(err)
	s.Empty(token)
}

func (s *storeSuite) TestSetGetClear() {
	ctx := context.Background()
	store := s.newStore(s.T())

	s.Require().NoError(store.Set(ctx, "first"))
	s.Require().NoError(store.Set(ctx, "second"))

	token, err := store.Get(ctx)
	s.Require().NoError(err)
	s.Equal("second", token)

	s.Require().NoError(store.Clear(ctx))
	token, err = store.Get(ctx)
	s.Require().NoError(err)
	s.Empty(token)

	// clearing twice is fine
	s.NoError(store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(t *testing.T) Store { return NewMemoryStore() }})
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"), "")
	}})
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFileStore(path, DefaultKey).Set(ctx, "persisted"))

	token, err := NewFileStore(path, DefaultKey).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var values map[string]string
	require.NoError(t, json.Unmarshal(data, &values))
	assert.Equal(t, "persisted", values["token"])

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestFileStore_ClearKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"t","theme":"dark"}`), 0o600))

	require.NoError(t, NewFileStore(path, "").Clear(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(data))
}

func TestFileStore_ClearRemovesEmptyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, "")

	require.NoError(t, store.Set(ctx, "t"))
	require.NoError(t, store.Clear(ctx))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path, "").Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***empty***", Mask(""))
	assert.Equal(t, "***masked***", Mask("short"))
	assert.Equal(t, "eyJhbGci***", Mask("eyJhbGciOiJIUzI1NiJ9.payload.sig"))
}

func TestParseClaims(t *testing.T) {
	issued := time.Now().Add(-time.Hour).Truncate(time.Second)
	expires := issued.Add(30 * time.Minute)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ada@example.com",
		"iat": issued.Unix(),
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString([]byte("someone else's secret"))
	require.NoError(t, err)

	claims, err := ParseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, expires.Equal(claims.ExpiresAt))
	assert.True(t, claims.Expired(time.Now()))

	_, err = ParseClaims("opaque-token")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{
		Backend: BackendFile,
		File:    filepath.Join(t.TempDir(), "session.json"),
		Key:     DefaultKey,
	}}

	store, closer, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.NoError(t, closer.Close())

	cfg.Session.Backend = BackendMemory
	store, _, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	cfg.Session.Backend = "sqlite"
	_, _, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestWithMetrics(t *testing.T) {
	m := metrics.NewMetrics(&metrics.Config{Namespace: "test", Enabled: true})
	store := WithMetrics(NewMemoryStore(), BackendMemory, m)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "t"))
	_, _ = store.Get(ctx)
	_, _ = store.Get(ctx)
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionOperations.WithLabelValues(BackendMemory, "get", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionOperations.WithLabelValues(BackendMemory, "clear", "ok")))
}
