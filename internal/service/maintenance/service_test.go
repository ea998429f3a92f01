package maintenance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockStore implements Store for testing
type mockStore struct {
	mu            sync.Mutex
	releaseCount  int
	releaseErr    error
	releaseCalled int
	deleteRunsErr error
	deleteCalled  int
	lastCutoff    time.Time
}

func (m *mockStore) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalled++
	return m.releaseCount, m.releaseErr
}

func (m *mockStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalled++
	m.lastCutoff = cutoff
	return 1, m.deleteRunsErr
}

// mockStorage implements port.AssetStorage for testing
type mockStorage struct {
	mu          sync.Mutex
	cleanCount  int
	cleanErr    error
	cleanCalled int
	lastAge     time.Duration
}

func (m *mockStorage) Put(ctx context.Context, name string, r io.Reader, contentType string) (string, int64, error) {
	return "", 0, nil
}
func (m *mockStorage) Exists(ctx context.Context, storagePath string) (bool, error) { return false, nil }
func (m *mockStorage) Delete(ctx context.Context, storagePath string) error         { return nil }
func (m *mockStorage) CleanOldTempFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanCalled++
	m.lastAge = olderThan
	return m.cleanCount, m.cleanErr
}

func TestService_New(t *testing.T) {
	logger := zap.NewNop()

	// Test with nil config (should use defaults)
	s := New(nil, &mockStore{}, &mockStorage{}, logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.config.LockCheckInterval != time.Minute {
		t.Errorf("LockCheckInterval = %v, want %v", s.config.LockCheckInterval, time.Minute)
	}

	// Zero fields fall back to defaults
	s = New(&Config{CleanupInterval: 2 * time.Minute}, &mockStore{}, &mockStorage{}, logger)
	if s.config.CleanupInterval != 2*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", s.config.CleanupInterval, 2*time.Minute)
	}
	if s.config.RunRetention != 30*24*time.Hour {
		t.Errorf("RunRetention = %v, want 720h", s.config.RunRetention)
	}
}

func TestService_StartStop(t *testing.T) {
	store := &mockStore{releaseCount: 2}
	storage := &mockStorage{cleanCount: 1}

	cfg := &Config{
		LockCheckInterval: 10 * time.Millisecond,
		CleanupInterval:   10 * time.Millisecond,
		TempFileMaxAge:    time.Hour,
		RunRetention:      time.Hour,
	}
	s := New(cfg, store, storage, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	cancel()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	storage.mu.Lock()
	defer storage.mu.Unlock()

	if store.releaseCalled == 0 {
		t.Error("ReleaseExpiredLocks was not called")
	}
	if store.deleteCalled == 0 {
		t.Error("DeleteRunsBefore was not called")
	}
	if storage.cleanCalled == 0 {
		t.Error("CleanOldTempFiles was not called")
	}
}

func TestService_DoubleStart(t *testing.T) {
	s := New(nil, &mockStore{}, &mockStorage{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		s.Start(ctx)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestService_RunOnce(t *testing.T) {
	store := &mockStore{releaseErr: errors.New("database is locked")}
	storage := &mockStorage{}

	s := New(&Config{TempFileMaxAge: 2 * time.Hour, RunRetention: 24 * time.Hour}, store, storage, zap.NewNop())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background())

	if store.releaseCalled != 1 {
		t.Errorf("releaseCalled = %d, want 1", store.releaseCalled)
	}
	if !store.lastCutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("cutoff = %v, want %v", store.lastCutoff, now.Add(-24*time.Hour))
	}
	if storage.lastAge != 2*time.Hour {
		t.Errorf("temp file age = %v, want 2h", storage.lastAge)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LockCheckInterval != time.Minute {
		t.Errorf("LockCheckInterval = %v, want %v", cfg.LockCheckInterval, time.Minute)
	}
	if cfg.CleanupInterval != 10*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, 10*time.Minute)
	}
	if cfg.TempFileMaxAge != time.Hour {
		t.Errorf("TempFileMaxAge = %v, want %v", cfg.TempFileMaxAge, time.Hour)
	}
}
