package blacklist

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local blacklist for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemory creates the blacklist and, when sweepEvery > 0, starts a
// goroutine that drops expired entries. Call Close to stop it.
func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		m.wg.Add(1)
		go m.run(sweepEvery)
	}
	return m
}

func (m *Memory) run(every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.done:
			return
		}
	}
}

// Add records token until expiresAt.
func (m *Memory) Add(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := m.Claim(ctx, token, expiresAt)
	return err
}

// Claim records token and reports whether it was not already present.
func (m *Memory) Claim(_ context.Context, token string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !expiresAt.After(now) {
		return false, nil
	}
	key := Fingerprint(token)
	if exp, ok := m.entries[key]; ok && exp.After(now) {
		return false, nil
	}
	m.entries[key] = expiresAt
	return true, nil
}

// Contains reports whether token is revoked, evicting it if it has expired.
func (m *Memory) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Fingerprint(token)
	exp, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !exp.After(m.now()) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// Sweep drops every expired entry.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, key)
		}
	}
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (m *Memory) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}
