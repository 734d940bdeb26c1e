package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestMemoryStateStore_IssueAndConsume(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)

	state, err := store.Issue(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if state == "" {
		t.Fatalf("expected non-empty state token")
	}

	record, err := store.Consume(context.Background(), state)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.ShopDomain != "shop.example.com" {
		t.Fatalf("expected shop domain to round-trip, got %q", record.ShopDomain)
	}

	if _, err := store.Consume(context.Background(), state); err == nil {
		t.Fatalf("expected second consume of the same token to fail")
	}
}

func TestMemoryStateStore_IssueSweepsExpiredEntries(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	store := NewMemoryStateStoreWithClock(time.Minute, func() time.Time { return clock })

	stale, err := store.Issue(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("issue stale: %v", err)
	}

	clock = now.Add(2 * time.Minute)
	fresh, err := store.Issue(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("issue fresh: %v", err)
	}

	if _, err := store.Consume(context.Background(), stale); err == nil {
		t.Fatalf("expected stale token to be swept on issue")
	}
	if _, err := store.Consume(context.Background(), fresh); err != nil {
		t.Fatalf("expected fresh token to remain, got %v", err)
	}
}

func TestMemoryStateStore_ConsumeRejectsExpiredToken(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	store := NewMemoryStateStoreWithClock(time.Minute, func() time.Time { return clock })

	state, err := store.Issue(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = now.Add(2 * time.Minute)
	_, err = store.Consume(context.Background(), state)
	if err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != ProxyErrorOAuthStateInvalid {
		t.Fatalf("expected %s text code, got %q", ProxyErrorOAuthStateInvalid, richErr.TextCode)
	}
}

func TestMemoryStateStore_ConsumeIsSingleUseUnderContention(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)
	state, err := store.Issue(context.Background(), "shop.example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(context.Background(), state)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", successes)
	}
}

func TestMemoryStateStore_TokensAreUnique(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		state, err := store.Issue(context.Background(), "shop.example.com")
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if seen[state] {
			t.Fatalf("duplicate state token issued: %q", state)
		}
		seen[state] = true
	}
}
