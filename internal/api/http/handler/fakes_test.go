package handler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/captionloom/caption-server/internal/accounts"
	"github.com/captionloom/caption-server/internal/otp"
	"github.com/captionloom/caption-server/internal/secrets"
)

// In-memory stands-ins for the Postgres stores, shared across the handler
// tests.

type memSecretStore struct {
	mu      sync.Mutex
	records map[string]secrets.HashedSecret
}

func newMemSecretStore() *memSecretStore {
	return &memSecretStore{records: make(map[string]secrets.HashedSecret)}
}

func (m *memSecretStore) GetSecret(_ context.Context, key string) (*secrets.HashedSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.records[key]
	if !ok {
		return nil, secrets.ErrSecretNotFound
	}
	return &sec, nil
}

func (m *memSecretStore) UpsertSecret(_ context.Context, sec secrets.HashedSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[sec.Key] = sec
	return nil
}

func (m *memSecretStore) SetSecretActive(_ context.Context, key string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.records[key]
	if !ok {
		return secrets.ErrSecretNotFound
	}
	sec.Active = active
	m.records[key] = sec
	return nil
}

type memDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string][]byte)}
}

func (m *memDocStore) GetDocument(_ context.Context, name string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[name]
	if !ok {
		return secrets.ErrDocumentNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *memDocStore) UpsertDocument(_ context.Context, name string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = raw
	return nil
}

func (m *memDocStore) DeleteDocument(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, name)
	return nil
}

type memCodeStore struct {
	mu    sync.Mutex
	codes []otp.Code
}

func (m *memCodeStore) Latest(_ context.Context, identity string) (*otp.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.codes[i].Identity == identity {
			c := m.codes[i]
			return &c, nil
		}
	}
	return nil, otp.ErrCodeNotFound
}

func (m *memCodeStore) Insert(_ context.Context, code otp.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *memCodeStore) ConsumeOutstanding(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.codes {
		if m.codes[i].Identity == identity {
			m.codes[i].Consumed = true
		}
	}
	return nil
}

func (m *memCodeStore) Consume(_ context.Context, identity, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.codes {
		if m.codes[i].Identity == identity && m.codes[i].CodeHash == codeHash && !m.codes[i].Consumed {
			m.codes[i].Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memCodeStore) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memAccounts struct {
	mu      sync.Mutex
	byEmail map[string]accounts.Account
	hashes  map[string]string
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		byEmail: make(map[string]accounts.Account),
		hashes:  make(map[string]string),
	}
}

func (m *memAccounts) CreateAdmin(_ context.Context, email, password string) (accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[email]; exists {
		return accounts.Account{}, accounts.ErrEmailExists
	}
	hash, err := accounts.HashPassword(password)
	if err != nil {
		return accounts.Account{}, err
	}
	acc := accounts.Account{
		ID:        "id-" + email,
		Email:     email,
		Role:      accounts.RoleAdmin,
		CreatedAt: time.Now(),
	}
	m.byEmail[email] = acc
	m.hashes[email] = hash
	return acc, nil
}

func (m *memAccounts) AdminExists(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail) > 0, nil
}

func (m *memAccounts) Authenticate(_ context.Context, email, password string) (accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byEmail[email]
	if !ok || !accounts.CheckPassword(password, m.hashes[email]) {
		return accounts.Account{}, accounts.ErrInvalidCredentials
	}
	return acc, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, to, _, _ string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return true
}
