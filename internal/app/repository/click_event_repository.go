package repository

import (
	"context"

	"github.com/pulseurl/pulseurl/internal/app/model"
	"gorm.io/gorm"
)

// ClickEventRepository is the write-side contract for the raw click log.
// The log is append-only; duplicates from at-least-once delivery are
// stored as-is.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
