package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"invitegate/internal/identity"
	"invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
	"invitegate/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	wallets map[domain.Address]models.Wallet
}

func NewInMemory() *InMemory {
	return &InMemory{wallets: make(map[domain.Address]models.Wallet)}
}

func (s *InMemory) Find(_ context.Context, addr domain.Address) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[addr]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", addr, sentinel.ErrNotFound)
	}
	if w.LinkedIdentity != nil {
		linked := *w.LinkedIdentity
		w.LinkedIdentity = &linked
	}
	return &w, nil
}

func (s *InMemory) FindByIdentity(ctx context.Context, commitment identity.Commitment) (*models.Wallet, error) {
	s.mu.RLock()
	var holder domain.Address
	found := false
	for addr, w := range s.wallets {
		if w.LinkedIdentity != nil && *w.LinkedIdentity == commitment {
			holder, found = addr, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("identity %s: %w", commitment.Hex(), sentinel.ErrNotFound)
	}
	return s.Find(ctx, holder)
}

func (s *InMemory) MarkVerified(_ context.Context, addr domain.Address, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[addr]
	if w.Verified {
		return fmt.Errorf("wallet %s: %w", addr, sentinel.ErrAlreadyUsed)
	}
	w.Address = addr
	w.Verified = true
	w.VerifiedAt = &at
	s.wallets[addr] = w
	return nil
}

func (s *InMemory) Link(_ context.Context, addr domain.Address, commitment identity.Commitment, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[addr]
	if !ok || !w.Verified || w.LinkedIdentity != nil {
		return fmt.Errorf("wallet %s: %w", addr, sentinel.ErrInvalidState)
	}
	for other, held := range s.wallets {
		if other != addr && held.LinkedIdentity != nil && *held.LinkedIdentity == commitment {
			return fmt.Errorf("identity held by wallet %s: %w", other, sentinel.ErrAlreadyUsed)
		}
	}
	w.LinkedIdentity = &commitment
	w.LinkedAt = &at
	s.wallets[addr] = w
	return nil
}

// Snapshot captures the registry and returns a func that restores it.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.wallets)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.wallets = saved
		s.mu.Unlock()
	}
}
