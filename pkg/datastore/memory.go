package datastore

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/chatroom/pkg/crypto"
	"github.com/NicolasHaas/chatroom/pkg/model"
)

// MemoryAccountStore provides an in-memory AccountStore for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryAccountStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextID  int64
	byName  map[string]*model.Account
	digests map[string]string
}

// NewMemoryAccounts creates a MemoryAccountStore using time.Now().UTC().
func NewMemoryAccounts() *MemoryAccountStore {
	return &MemoryAccountStore{
		now:     func() time.Time { return time.Now().UTC() },
		nextID:  1,
		byName:  make(map[string]*model.Account),
		digests: make(map[string]string),
	}
}

// Close is a no-op for MemoryAccountStore.
func (s *MemoryAccountStore) Close() error {
	return nil
}

// CreateAccount registers a new account.
func (s *MemoryAccountStore) CreateAccount(username, password string) error {
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	digest, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[username]; exists {
		return ErrUsernameTaken
	}
	s.byName[username] = &model.Account{
		ID:        s.nextID,
		Username:  username,
		CreatedAt: s.now(),
	}
	s.digests[username] = digest
	s.nextID++
	return nil
}

// CheckLogin verifies a username/password pair.
func (s *MemoryAccountStore) CheckLogin(username, password string) (bool, error) {
	s.mu.RLock()
	digest, ok := s.digests[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return crypto.VerifyPassword(password, digest), nil
}

// GetAccountByUsername retrieves an account by username, nil if absent.
func (s *MemoryAccountStore) GetAccountByUsername(username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byName[username]
	if !ok {
		return nil, nil
	}
	copyAccount := *a
	return &copyAccount, nil
}

// ListAccounts returns all accounts ordered by ID.
func (s *MemoryAccountStore) ListAccounts() ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]model.Account, 0, len(s.byName))
	for _, a := range s.byName {
		accounts = append(accounts, *a)
	}
	for i := 1; i < len(accounts); i++ {
		for j := i; j > 0 && accounts[j-1].ID > accounts[j].ID; j-- {
			accounts[j-1], accounts[j] = accounts[j], accounts[j-1]
		}
	}
	return accounts, nil
}

// MemoryMessageStore provides an in-memory MessageStore for tests.
type MemoryMessageStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextID   int64
	messages []model.ChatMessage

	// failWith, when set, makes SaveMessage fail. Lets tests exercise the
	// degraded best-effort persistence path.
	failWith error
}

// NewMemoryMessages creates a MemoryMessageStore using time.Now().UTC().
func NewMemoryMessages() *MemoryMessageStore {
	return &MemoryMessageStore{
		now:    func() time.Time { return time.Now().UTC() },
		nextID: 1,
	}
}

// Close is a no-op for MemoryMessageStore.
func (s *MemoryMessageStore) Close() error {
	return nil
}

// FailWith makes subsequent SaveMessage calls return err (nil restores).
func (s *MemoryMessageStore) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

// SaveMessage appends one chat line.
func (s *MemoryMessageStore) SaveMessage(username, body string) error {
	m := model.ChatMessage{Username: username, Body: body}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("datastore: save message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	m.ID = s.nextID
	m.CreatedAt = s.now()
	s.nextID++
	s.messages = append(s.messages, m)
	return nil
}

// ListMessages returns chat lines in insertion order.
func (s *MemoryMessageStore) ListMessages(filters model.MessageFilters) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ChatMessage
	for _, m := range s.messages {
		if filters.LimitToUsername != nil && m.Username != *filters.LimitToUsername {
			continue
		}
		out = append(out, m)
	}

	offset := int64(0)
	if filters.Offset != nil {
		offset = *filters.Offset
	}
	limit := int64(100)
	if filters.PageSize != nil {
		limit = *filters.PageSize
	}
	if offset >= int64(len(out)) {
		return nil, nil
	}
	out = out[offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
