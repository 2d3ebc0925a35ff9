package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/repository"
	"golang.org/x/crypto/bcrypt"
)

type mockLinkRepository struct {
	createFn func(ctx context.Context, link *model.Link) error
	getFn    func(ctx context.Context, code string) (*model.Link, error)
	listFn   func(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	deleteFn func(ctx context.Context, code string) error

	storeReads int64
	increments int64
	touches    int64
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	atomic.AddInt64(&m.storeReads, 1)
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

func (m *mockLinkRepository) Delete(ctx context.Context, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, code)
	}
	return nil
}

func (m *mockLinkRepository) IncrementClicks(ctx context.Context, code string) error {
	atomic.AddInt64(&m.increments, 1)
	return nil
}

func (m *mockLinkRepository) TouchLastAccessed(ctx context.Context, code string, at time.Time) error {
	atomic.AddInt64(&m.touches, 1)
	return nil
}

func (m *mockLinkRepository) Codes(ctx context.Context) ([]string, error) {
	return nil, nil
}

type mockLinkCache struct {
	mu      sync.Mutex
	entries map[string]*model.CacheEntry
	getErr  error
	deletes int
}

func newMockLinkCache() *mockLinkCache {
	return &mockLinkCache{entries: make(map[string]*model.CacheEntry)}
}

func (m *mockLinkCache) Get(ctx context.Context, code string) (*model.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	entry, ok := m.entries[code]
	return entry, ok, nil
}

func (m *mockLinkCache) Set(ctx context.Context, code string, entry *model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[code] = entry
	return nil
}

func (m *mockLinkCache) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, code)
	m.deletes++
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) Publish(code, ip, userAgent, referrer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, code)
	return nil
}

func newTestResolver(repo *mockLinkRepository, cache *mockLinkCache, pub *mockPublisher) *Resolver {
	deps := ResolverDeps{
		Links: repo,
		Cache: cache,
	}
	// Assign only a non-nil pointer so a nil *mockPublisher stays a nil
	// interface rather than a typed-nil that defeats the publisher guard.
	if pub != nil {
		deps.Publisher = pub
	}
	return NewResolver(deps)
}

func TestResolver_SecondResolveIsCacheHit(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com"}, nil
		},
	}
	cache := newMockLinkCache()
	pub := &mockPublisher{}
	r := newTestResolver(repo, cache, pub)
	r.Start(1)

	first, err := r.Resolve(context.Background(), "abc123", Click{})
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	second, err := r.Resolve(context.Background(), "abc123", Click{})
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}

	if first.TargetURL != "https://example.com" || second.TargetURL != first.TargetURL {
		t.Fatalf("expected both resolves to return the target, got %q and %q", first.TargetURL, second.TargetURL)
	}
	if reads := atomic.LoadInt64(&repo.storeReads); reads != 1 {
		t.Fatalf("expected exactly 1 store read, got %d", reads)
	}

	r.Stop()
	if n := atomic.LoadInt64(&repo.increments); n != 2 {
		t.Fatalf("expected 2 click increments after drain, got %d", n)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}
}

func TestResolver_NotFound(t *testing.T) {
	repo := &mockLinkRepository{}
	r := newTestResolver(repo, newMockLinkCache(), nil)

	_, err := r.Resolve(context.Background(), "missing", Click{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolver_ExpiredLinkNeverCached(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", ExpiresAt: &past}, nil
		},
	}
	cache := newMockLinkCache()
	r := newTestResolver(repo, cache, nil)

	_, err := r.Resolve(context.Background(), "xyz789", Click{})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok := cache.entries["xyz789"]; ok {
		t.Fatal("expected no cache entry for an expired link")
	}
}

func TestResolver_StaleCachePurgedAndRechecked(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", ExpiresAt: &past}, nil
		},
	}
	cache := newMockLinkCache()
	cache.entries["stale"] = &model.CacheEntry{TargetURL: "https://example.com", ExpiresAt: &past}
	r := newTestResolver(repo, cache, nil)

	_, err := r.Resolve(context.Background(), "stale", Click{})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if reads := atomic.LoadInt64(&repo.storeReads); reads != 1 {
		t.Fatalf("expected the stale hit to re-read the store, got %d reads", reads)
	}
	if _, ok := cache.entries["stale"]; ok {
		t.Fatal("expected the stale entry to be purged")
	}
}

func TestResolver_GatedWithholdsTarget(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	hashed := string(hash)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", PasswordHash: &hashed}, nil
		},
	}
	r := newTestResolver(repo, newMockLinkCache(), nil)
	r.Start(1)

	res, err := r.Resolve(context.Background(), "pwd001", Click{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !res.Gated {
		t.Fatal("expected a gated resolution")
	}
	if res.TargetURL != "" {
		t.Fatalf("gated resolution must not disclose the target, got %q", res.TargetURL)
	}

	r.Stop()
	if n := atomic.LoadInt64(&repo.increments); n != 0 {
		t.Fatalf("gated resolution must not count a click, got %d increments", n)
	}
}

func TestResolver_VerifyPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	hashed := string(hash)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", PasswordHash: &hashed}, nil
		},
	}
	r := newTestResolver(repo, newMockLinkCache(), nil)
	r.Start(1)

	if _, err := r.VerifyPassword(context.Background(), "pwd001", "wrong", Click{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	target, err := r.VerifyPassword(context.Background(), "pwd001", "secret", Click{})
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if target != "https://example.com" {
		t.Fatalf("expected target URL, got %q", target)
	}

	r.Stop()
	if n := atomic.LoadInt64(&repo.increments); n != 1 {
		t.Fatalf("expected exactly 1 increment for the successful verify, got %d", n)
	}
}

func TestResolver_VerifyPasswordRechecksExpiry(t *testing.T) {
	past := time.Now().Add(-time.Second)
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	hashed := string(hash)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", PasswordHash: &hashed, ExpiresAt: &past}, nil
		},
	}
	r := newTestResolver(repo, newMockLinkCache(), nil)

	if _, err := r.VerifyPassword(context.Background(), "pwd001", "secret", Click{}); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestResolver_CacheFailureFallsBackToStore(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com"}, nil
		},
	}
	cache := newMockLinkCache()
	cache.getErr = errors.New("redis down")
	r := newTestResolver(repo, cache, nil)
	r.Start(1)
	defer r.Stop()

	res, err := r.Resolve(context.Background(), "abc123", Click{})
	if err != nil {
		t.Fatalf("expected store-only fallback to succeed, got %v", err)
	}
	if res.TargetURL != "https://example.com" {
		t.Fatalf("unexpected target %q", res.TargetURL)
	}
}

func TestResolver_SeededCodeStillResolves(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com"}, nil
		},
	}
	r := newTestResolver(repo, newMockLinkCache(), nil)
	r.Start(1)
	defer r.Stop()

	r.SeedFilter([]string{"abc123"})
	if _, err := r.Resolve(context.Background(), "abc123", Click{}); err != nil {
		t.Fatalf("seeded code must pass the filter, got %v", err)
	}

	r.AddCode("fresh1")
	if _, err := r.Resolve(context.Background(), "fresh1", Click{}); err != nil {
		t.Fatalf("added code must pass the filter, got %v", err)
	}
}

func TestResolver_ConcurrentClicksCountExactly(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com"}, nil
		},
	}
	r := newTestResolver(repo, newMockLinkCache(), nil)
	r.Start(4)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "abc123", Click{}); err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	r.Stop()

	if got := atomic.LoadInt64(&repo.increments); got != n {
		t.Fatalf("expected exactly %d increments, got %d", n, got)
	}
}
