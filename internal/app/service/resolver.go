package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pulseurl/pulseurl/internal/app/cache"
	"github.com/pulseurl/pulseurl/internal/app/metrics"
	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound signals an unknown short code.
	ErrNotFound = errors.New("short link not found")
	// ErrExpired signals a link past its expiry; expiry is permanent.
	ErrExpired = errors.New("short link expired")
	// ErrUnauthorized signals a wrong password on a gated link.
	ErrUnauthorized = errors.New("incorrect password")
)

// Resolution is the outcome of a successful lookup. When Gated is true
// the target URL is withheld until the password is verified.
type Resolution struct {
	TargetURL string
	Gated     bool
}

// Click carries the request metadata recorded with each redirect.
type Click struct {
	IP        string
	UserAgent string
	Referrer  string
}

type eventPublisher interface {
	Publish(code, ip, userAgent, referrer string) error
}

type clickJob struct {
	code  string
	click Click
}

const (
	defaultClickQueueSize = 1024
	defaultClickWorkers   = 4
	incrementAttempts     = 3
)

// ResolverDeps groups the collaborators of the hot resolution path.
type ResolverDeps struct {
	Logger    *zap.Logger
	Links     repository.LinkRepository
	Cache     cache.LinkCache
	Publisher eventPublisher
	// QueueSize bounds the background click queue; beyond it new click
	// recordings are dropped (and counted), never queued unbounded.
	QueueSize int
}

// Resolver orchestrates cache lookup, store fallback, cache population
// and gating, and schedules click recording off the request path. It
// holds no cross-request lock on the resolution path.
type Resolver struct {
	logger    *zap.Logger
	links     repository.LinkRepository
	cache     cache.LinkCache
	publisher eventPublisher

	filterMu sync.RWMutex
	filter   *bloom.BloomFilter

	jobs chan clickJob
	wg   sync.WaitGroup

	now func() time.Time
}

// NewResolver creates a resolver. Call Start before serving traffic and
// Stop on shutdown to drain the click queue.
func NewResolver(deps ResolverDeps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = defaultClickQueueSize
	}

	return &Resolver{
		logger:    logger,
		links:     deps.Links,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		jobs:      make(chan clickJob, queueSize),
		now:       time.Now,
	}
}

// Start launches the background click workers.
func (r *Resolver) Start(workers int) {
	if workers <= 0 {
		workers = defaultClickWorkers
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop closes the click queue and waits for in-flight jobs to finish.
func (r *Resolver) Stop() {
	close(r.jobs)
	r.wg.Wait()
}

// SeedFilter installs a bloom filter over the known codes. Lookups for
// codes the filter rules out skip both cache and store.
func (r *Resolver) SeedFilter(codes []string) {
	n := uint(len(codes))
	if n < 1024 {
		n = 1024
	}
	filter := bloom.NewWithEstimates(n*2, 0.01)
	for _, code := range codes {
		filter.AddString(code)
	}

	r.filterMu.Lock()
	r.filter = filter
	r.filterMu.Unlock()
}

// AddCode registers a newly created code with the bloom filter.
func (r *Resolver) AddCode(code string) {
	r.filterMu.Lock()
	if r.filter != nil {
		r.filter.AddString(code)
	}
	r.filterMu.Unlock()
}

func (r *Resolver) mightExist(code string) bool {
	r.filterMu.RLock()
	defer r.filterMu.RUnlock()
	return r.filter == nil || r.filter.TestString(code)
}

// Resolve maps a short code to a redirect target, a gated indicator, or
// a terminal failure. On an ungated resolution the click is recorded in
// the background; recording failures never reach the caller.
func (r *Resolver) Resolve(ctx context.Context, code string, click Click) (*Resolution, error) {
	if !r.mightExist(code) {
		return nil, ErrNotFound
	}

	entry, err := r.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if entry.HasPassword {
		return &Resolution{Gated: true}, nil
	}

	r.recordClick(code, click)
	return &Resolution{TargetURL: entry.TargetURL}, nil
}

// Target returns the destination for a code without recording a click,
// for the post-verification hop where the click was already counted.
func (r *Resolver) Target(ctx context.Context, code string) (string, error) {
	if !r.mightExist(code) {
		return "", ErrNotFound
	}
	entry, err := r.lookup(ctx, code)
	if err != nil {
		return "", err
	}
	return entry.TargetURL, nil
}

// lookup runs the cache-aside read: cache first, store on miss, cache
// fill on a valid store read. Cache failures degrade to store-only
// resolution.
func (r *Resolver) lookup(ctx context.Context, code string) (*model.CacheEntry, error) {
	now := r.now()

	entry, ok, err := r.cache.Get(ctx, code)
	if err != nil {
		r.logger.Warn("cache unavailable, falling back to store", zap.String("code", code), zap.Error(err))
	}
	if ok {
		if !entry.Expired(now) {
			metrics.CacheHits.Inc()
			return entry, nil
		}
		// Stale positive hit: purge and re-read the store instead of
		// trusting it.
		if err := r.cache.Delete(ctx, code); err != nil {
			r.logger.Warn("failed to purge stale cache entry", zap.String("code", code), zap.Error(err))
		}
	}
	metrics.CacheMisses.Inc()

	link, err := r.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if link.Expired(now) {
		// Expired links are never cached and never resurrect.
		if err := r.cache.Delete(ctx, code); err != nil {
			r.logger.Warn("failed to purge expired cache entry", zap.String("code", code), zap.Error(err))
		}
		return nil, ErrExpired
	}

	fresh := &model.CacheEntry{
		TargetURL:   link.TargetURL,
		ExpiresAt:   link.ExpiresAt,
		HasPassword: link.HasPassword(),
	}
	// Last writer wins under concurrent misses; duplicate store reads
	// during a thundering herd are bounded by the entry TTL.
	if err := r.cache.Set(ctx, code, fresh); err != nil {
		r.logger.Warn("failed to populate cache", zap.String("code", code), zap.Error(err))
	}

	return fresh, nil
}

// VerifyPassword checks a candidate secret against the stored hash and
// returns the target URL on a match. Expiry is re-checked here because a
// link can expire between the initial gate and verification. A
// successful verification counts as a click.
func (r *Resolver) VerifyPassword(ctx context.Context, code, secret string, click Click) (string, error) {
	link, err := r.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	if link.Expired(r.now()) {
		if err := r.cache.Delete(ctx, code); err != nil {
			r.logger.Warn("failed to purge expired cache entry", zap.String("code", code), zap.Error(err))
		}
		return "", ErrExpired
	}

	if link.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(secret)); err != nil {
			return "", ErrUnauthorized
		}
	}

	r.recordClick(code, click)
	return link.TargetURL, nil
}

// recordClick schedules the counter increment and event publish without
// blocking the caller. A full queue drops the recording.
func (r *Resolver) recordClick(code string, click Click) {
	select {
	case r.jobs <- clickJob{code: code, click: click}:
	default:
		metrics.ClickJobsDropped.Inc()
		r.logger.Warn("click queue full, dropping click", zap.String("code", code))
	}
}

func (r *Resolver) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		r.processClick(job)
	}
}

func (r *Resolver) processClick(job clickJob) {
	ctx := context.Background()
	now := r.now()

	var err error
	for attempt := 0; attempt < incrementAttempts; attempt++ {
		if err = r.links.IncrementClicks(ctx, job.code); err == nil {
			break
		}
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Deleted between redirect and recording; nothing to count.
			return
		}
	}
	if err != nil {
		metrics.ClickJobsDropped.Inc()
		r.logger.Error("failed to increment click counter", zap.String("code", job.code), zap.Error(err))
		return
	}

	if err := r.links.TouchLastAccessed(ctx, job.code, now); err != nil {
		r.logger.Warn("failed to touch last accessed", zap.String("code", job.code), zap.Error(err))
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(job.code, job.click.IP, job.click.UserAgent, job.click.Referrer); err != nil {
			metrics.PublishFailures.Inc()
			r.logger.Error("failed to publish click event", zap.String("code", job.code), zap.Error(err))
		}
	}
}
