// Package wallet tracks the identity a client acts as. Accounts come from a
// Provider, the stand-in for a browser-injected wallet; nothing is signed.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoProvider         = errors.New("no wallet provider available")
	ErrConnectionRejected = errors.New("wallet connection rejected")
	ErrNotConnected       = errors.New("wallet not connected")
)

// Provider hands out the accounts a user agrees to expose.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// StaticProvider exposes a fixed account list.
type StaticProvider struct {
	Accounts []string
	Err      error
}

func (p StaticProvider) RequestAccounts(context.Context) ([]string, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Accounts, nil
}

// Session holds the currently connected account, if any.
type Session struct {
	mu         sync.RWMutex
	provider   Provider
	account    string
	connecting bool
	log        logrus.FieldLogger
}

// NewSession creates a disconnected session. provider may be nil, in which
// case Connect fails with ErrNoProvider.
func NewSession(provider Provider, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{provider: provider, log: log}
}

// Connect asks the provider for accounts and adopts the first one.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		s.log.Warn("wallet provider not found")
		return "", ErrNoProvider
	}

	s.mu.Lock()
	s.connecting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		s.log.WithError(err).Warn("wallet connection failed")
		return "", fmt.Errorf("%w: %v", ErrConnectionRejected, err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", fmt.Errorf("%w: provider returned no accounts", ErrConnectionRejected)
	}

	s.mu.Lock()
	s.account = accounts[0]
	s.mu.Unlock()

	s.log.WithField("account", Truncate(accounts[0])).Info("wallet connected")
	return accounts[0], nil
}

// Disconnect forgets the connected account.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.account = ""
	s.mu.Unlock()
	s.log.Info("wallet disconnected")
}

// AccountsChanged applies an account change pushed by the provider. An
// empty list means the user disconnected every account.
func (s *Session) AccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		s.Disconnect()
		return
	}

	s.mu.Lock()
	s.account = accounts[0]
	s.mu.Unlock()
	s.log.WithField("account", Truncate(accounts[0])).Info("wallet account changed")
}

// Account returns the connected account.
func (s *Session) Account() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.account != ""
}

// Require returns the connected account or ErrNotConnected.
func (s *Session) Require() (string, error) {
	account, ok := s.Account()
	if !ok {
		return "", ErrNotConnected
	}
	return account, nil
}

func (s *Session) IsConnected() bool {
	_, ok := s.Account()
	return ok
}

func (s *Session) IsConnecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connecting
}

// Truncate shortens an address for display, e.g. 0x71C7...976F.
func Truncate(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
