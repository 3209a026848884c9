package datastore

import (
	"errors"

	"github.com/NicolasHaas/chatroom/pkg/model"
)

// ErrUsernameTaken is returned by CreateAccount when the username is
// already registered.
var ErrUsernameTaken = errors.New("datastore: username already taken")

// AccountStore is the credential store. Implementations include the default
// SQLite store and an in-memory store for tests.
type AccountStore interface {
	// CreateAccount registers a new account, hashing the password before it
	// is stored. Returns ErrUsernameTaken if the username exists.
	CreateAccount(username, password string) error

	// CheckLogin reports whether the username/password pair matches a
	// registered account. An unknown username is a plain false, not an error.
	CheckLogin(username, password string) (bool, error)

	GetAccountByUsername(username string) (*model.Account, error)
	ListAccounts() ([]model.Account, error)

	Close() error
}

// MessageStore is the chat log. Persistence is best-effort: callers treat
// failures as degraded operation, never as fatal.
type MessageStore interface {
	// SaveMessage appends one chat line. The record timestamp is assigned
	// by the store, independent of any broadcast timestamp.
	SaveMessage(username, body string) error

	ListMessages(filters model.MessageFilters) ([]model.ChatMessage, error)

	Close() error
}

// Compile-time checks: both SQLite stores implement their interfaces.
var _ AccountStore = (*SQLAccountStore)(nil)
var _ MessageStore = (*SQLMessageStore)(nil)

var _ AccountStore = (*MemoryAccountStore)(nil)
var _ MessageStore = (*MemoryMessageStore)(nil)
