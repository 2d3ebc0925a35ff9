package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/pulseurl/pulseurl/internal/app/cache"
	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const (
	codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 6
	// createAttempts bounds retries when a generated code collides.
	createAttempts = 5

	bulkMaxURLs    = 100
	bulkConcurrent = 8
)

// ErrCodeTaken signals a duplicate custom alias; the caller must choose
// another.
var ErrCodeTaken = repository.ErrCodeTaken

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	BulkCreate(ctx context.Context, ownerID *string, urls []string) []BulkResult
	GetLink(ctx context.Context, code string) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	DeleteLink(ctx context.Context, code string) error
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	CustomAlias string
	TargetURL   string
	OwnerID     *string
	Password    string
	ExpiresIn   time.Duration
}

// BulkResult reports the per-URL outcome of a bulk shorten call.
type BulkResult struct {
	TargetURL string  `json:"target_url"`
	Code      string  `json:"code,omitempty"`
	Title     *string `json:"title,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
}

// LinkServiceDeps groups the collaborators of the link service.
type LinkServiceDeps struct {
	Logger  *zap.Logger
	Repo    repository.LinkRepository
	Cache   cache.LinkCache
	Preview *PreviewFetcher
	// OnCreate is notified of every new code, e.g. to feed the
	// resolver's bloom filter.
	OnCreate func(code string)
}

type linkService struct {
	logger   *zap.Logger
	repo     repository.LinkRepository
	cache    cache.LinkCache
	preview  *PreviewFetcher
	onCreate func(code string)
}

// NewLinkService returns a service implementation backed by the given
// dependencies.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		logger:   logger,
		repo:     deps.Repo,
		cache:    deps.Cache,
		preview:  deps.Preview,
		onCreate: deps.OnCreate,
	}
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if input.TargetURL == "" {
		return nil, errors.New("target URL cannot be empty")
	}

	link := &model.Link{
		TargetURL: input.TargetURL,
		OwnerID:   input.OwnerID,
	}

	if input.ExpiresIn > 0 {
		expiresAt := time.Now().Add(input.ExpiresIn)
		link.ExpiresAt = &expiresAt
	}

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}

	if s.preview != nil {
		preview := s.preview.Fetch(ctx, input.TargetURL)
		link.Title = preview.Title
		link.ImageURL = preview.ImageURL
	}

	if input.CustomAlias != "" {
		link.Code = input.CustomAlias
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeTaken) {
				return nil, ErrCodeTaken
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
	} else if err := s.createWithGeneratedCode(ctx, link); err != nil {
		return nil, err
	}

	if s.onCreate != nil {
		s.onCreate(link.Code)
	}
	return link, nil
}

// createWithGeneratedCode retries on the off chance a random code
// collides with an existing one.
func (s *linkService) createWithGeneratedCode(ctx context.Context, link *model.Link) error {
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		link.Code = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return fmt.Errorf("create link: %w", err)
		}
	}
	return errors.New("create link: exhausted code generation attempts")
}

func (s *linkService) BulkCreate(ctx context.Context, ownerID *string, urls []string) []BulkResult {
	if len(urls) > bulkMaxURLs {
		urls = urls[:bulkMaxURLs]
	}

	results := make([]BulkResult, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrent)

	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			link, err := s.CreateLink(ctx, CreateLinkInput{TargetURL: url, OwnerID: ownerID})
			if err != nil {
				s.logger.Warn("bulk shorten item failed", zap.String("url", url), zap.Error(err))
				results[i] = BulkResult{TargetURL: url, Error: "failed to shorten"}
				return nil
			}
			results[i] = BulkResult{
				TargetURL: url,
				Code:      link.Code,
				Title:     link.Title,
				ImageURL:  link.ImageURL,
				Success:   true,
			}
			return nil
		})
	}
	// Workers never return errors; Wait only orders completion.
	_ = g.Wait()

	return results
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// DeleteLink removes the durable record and explicitly purges the cache
// entry so the deletion is visible before the TTL would have elapsed.
func (s *linkService) DeleteLink(ctx context.Context, code string) error {
	if err := s.repo.Delete(ctx, code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete link: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, code); err != nil {
			s.logger.Warn("failed to purge cache entry on delete", zap.String("code", code), zap.Error(err))
		}
	}
	return nil
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
