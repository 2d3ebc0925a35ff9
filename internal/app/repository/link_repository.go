package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pulseurl/pulseurl/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrCodeTaken signals a uniqueness conflict on the short code.
	ErrCodeTaken = errors.New("short code already taken")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	Delete(ctx context.Context, code string) error
	// IncrementClicks bumps the click counter with a store-side atomic
	// update. Concurrent increments never lose counts.
	IncrementClicks(ctx context.Context, code string) error
	TouchLastAccessed(ctx context.Context, code string, at time.Time) error
	// Codes returns every known short code, used to seed the bloom guard.
	Codes(ctx context.Context) ([]string, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) Delete(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).Where("code = ?", code).Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) IncrementClicks(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) TouchLastAccessed(ctx context.Context, code string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		UpdateColumn("last_accessed_at", at).Error
}

func (r *linkRepository) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
