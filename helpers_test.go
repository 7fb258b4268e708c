package procureauth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/procureauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errStoreDown = errors.New("store down")

// mockStore is an in-memory CredentialStore and MFAStore.
type mockStore struct {
	mu       sync.Mutex
	accounts map[string]CredentialRecord
	byLogin  map[string]string
	mfa      map[string]*mockEnrollment
	lastSeen map[string]time.Time

	mfaErr    error
	rehashErr error
	// hideHashes makes GetMFA omit RecoveryCodeHashes so the store matches
	// recovery codes itself.
	hideHashes bool

	getByLoginCalls int
	getByIDCalls    int
	consumeCalls    int
	rehashCalls     int
}

type mockEnrollment struct {
	secret     string
	hashes     map[string]struct{}
	lastUsedAt *time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[string]CredentialRecord),
		byLogin:  make(map[string]string),
		mfa:      make(map[string]*mockEnrollment),
		lastSeen: make(map[string]time.Time),
	}
}

func (m *mockStore) add(rec CredentialRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[rec.ID] = rec
	m.byLogin[rec.LoginID] = rec.ID
}

func (m *mockStore) GetByLoginID(_ context.Context, loginID string) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByLoginCalls++
	id, ok := m.byLogin[loginID]
	if !ok {
		return CredentialRecord{}, ErrPrincipalNotFound
	}
	return m.accounts[id], nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	rec, ok := m.accounts[id]
	if !ok {
		return CredentialRecord{}, ErrPrincipalNotFound
	}
	return rec, nil
}

func (m *mockStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen[id] = at
	return nil
}

func (m *mockStore) UpdatePasswordHash(_ context.Context, id, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rehashCalls++
	if m.rehashErr != nil {
		return m.rehashErr
	}
	rec, ok := m.accounts[id]
	if !ok || rec.PasswordHash != oldHash {
		return nil
	}
	rec.PasswordHash = newHash
	m.accounts[id] = rec
	return nil
}

func (m *mockStore) GetMFA(_ context.Context, accountID string) (MFAEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mfaErr != nil {
		return MFAEnrollment{}, m.mfaErr
	}
	e, ok := m.mfa[accountID]
	if !ok {
		return MFAEnrollment{}, nil
	}
	out := MFAEnrollment{
		Enabled:                true,
		Secret:                 e.secret,
		RecoveryCodesRemaining: len(e.hashes),
		LastUsedAt:             e.lastUsedAt,
	}
	if !m.hideHashes {
		out.RecoveryCodeHashes = make([]string, 0, len(e.hashes))
		for h := range e.hashes {
			out.RecoveryCodeHashes = append(out.RecoveryCodeHashes, h)
		}
		sort.Strings(out.RecoveryCodeHashes)
	}
	return out, nil
}

func (m *mockStore) EnableMFA(_ context.Context, accountID, secret string, codeHashes []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mfaErr != nil {
		return m.mfaErr
	}
	hashes := make(map[string]struct{}, len(codeHashes))
	for _, h := range codeHashes {
		hashes[h] = struct{}{}
	}
	m.mfa[accountID] = &mockEnrollment{secret: secret, hashes: hashes, lastUsedAt: &at}
	return nil
}

func (m *mockStore) DisableMFA(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mfa, accountID)
	return nil
}

func (m *mockStore) TouchMFA(_ context.Context, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.mfa[accountID]; ok {
		e.lastUsedAt = &at
	}
	return nil
}

func (m *mockStore) ConsumeRecoveryCode(_ context.Context, accountID, codeHash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++
	e, ok := m.mfa[accountID]
	if !ok {
		return false, nil
	}
	if _, ok := e.hashes[codeHash]; !ok {
		return false, nil
	}
	delete(e.hashes, codeHash)
	e.lastUsedAt = &at
	return true, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef-012")
	cfg.JWT.MFASecret = []byte("mfa-secret-0123456789abcdef-0123456")
	cfg.Password.BcryptCost = 4
	return cfg
}

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()
	h, err := password.NewHasher(password.Config{BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	out, err := h.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return out
}

type engineFixture struct {
	engine *Engine
	store  *mockStore
	redis  *miniredis.Miniredis
}

// newFixture builds an engine over a mock store with two accounts:
// alice (active) and bob (disabled), both with password "correct-horse".
func newFixture(t *testing.T, mutate func(*Config, *Builder)) *engineFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMockStore()
	hash := mustHash(t, "correct-horse")
	store.add(CredentialRecord{ID: "u-alice", LoginID: "alice", PasswordHash: hash, Role: RoleAdmin, Status: AccountActive, ProfileID: "p-1", TenantID: "t-1"})
	store.add(CredentialRecord{ID: "u-bob", LoginID: "bob", PasswordHash: hash, Role: RoleUser, Status: AccountDisabled})

	cfg := testConfig()
	b := New().WithRedis(rdb).WithCredentialStore(store).WithMFAStore(store)
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, store: store, redis: mr}
}
