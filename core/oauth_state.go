package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultStateTTL bounds how long an issued CSRF state token stays valid.
const DefaultStateTTL = 10 * time.Minute

// StateRecord is the issuing context kept for one CSRF state token.
type StateRecord struct {
	State      string
	ShopDomain string
	IssuedAt   time.Time
}

// StateStore issues single-use CSRF state tokens and consumes them exactly
// once. Consume must be an atomic check-and-remove: two callbacks racing on
// the same token cannot both succeed.
type StateStore interface {
	Issue(ctx context.Context, shopDomain string) (string, error)
	Consume(ctx context.Context, state string) (StateRecord, error)
}

// MemoryStateStore keeps state tokens in process memory. Every Issue call
// first sweeps entries older than the TTL, so the map never accumulates
// abandoned flows.
type MemoryStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]StateRecord
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return NewMemoryStateStoreWithClock(ttl, nil)
}

func NewMemoryStateStoreWithClock(ttl time.Duration, now func() time.Time) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStateStore{
		ttl:     ttl,
		now:     now,
		entries: map[string]StateRecord{},
	}
}

func (s *MemoryStateStore) Issue(_ context.Context, shopDomain string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: state store is not configured")
	}
	domain := strings.TrimSpace(shopDomain)
	if domain == "" {
		return "", fmt.Errorf("core: shop domain is required")
	}
	state, err := generateStateToken()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	for key, record := range s.entries {
		if record.IssuedAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
	s.entries[state] = StateRecord{
		State:      state,
		ShopDomain: domain,
		IssuedAt:   now,
	}
	s.mu.Unlock()

	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (StateRecord, error) {
	if s == nil {
		return StateRecord{}, fmt.Errorf("core: state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return StateRecord{}, invalidStateError()
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return StateRecord{}, invalidStateError()
	}
	if s.now().UTC().After(record.IssuedAt.Add(s.ttl)) {
		return StateRecord{}, invalidStateError()
	}
	return record, nil
}

func invalidStateError() error {
	return goerrors.New("core: invalid or expired state parameter", goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(ProxyErrorOAuthStateInvalid)
}

func generateStateToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ StateStore = (*MemoryStateStore)(nil)
