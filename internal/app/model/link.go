package model

import "time"

// Link is the durable short-link record stored in Postgres.
//
// Code is immutable once assigned and unique at the store level.
// PasswordHash, when set, gates resolution until the password is verified.
// A nil ExpiresAt means the link never expires.
type Link struct {
	Code           string     `db:"code" gorm:"primaryKey;size:32"`
	TargetURL      string     `db:"target_url" gorm:"type:text;not null"`
	OwnerID        *string    `db:"owner_id" gorm:"size:64;index"`
	PasswordHash   *string    `db:"password_hash" gorm:"size:128"`
	Title          *string    `db:"title" gorm:"type:text"`
	ImageURL       *string    `db:"image_url" gorm:"type:text"`
	Clicks         int64      `db:"clicks" gorm:"not null;default:0"`
	LastAccessedAt *time.Time `db:"last_accessed_at"`
	CreatedAt      time.Time  `db:"created_at" gorm:"autoCreateTime;index"`
	ExpiresAt      *time.Time `db:"expires_at" gorm:"index"`
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// HasPassword reports whether resolution is password-gated.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// CacheEntry is the disposable resolution projection of a Link held in
// Redis. It is a hint only; the store stays authoritative whenever the
// entry is absent or stale.
type CacheEntry struct {
	TargetURL   string     `json:"target_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	HasPassword bool       `json:"has_password"`
}

// Expired reports whether the cached projection is past its expiry.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
