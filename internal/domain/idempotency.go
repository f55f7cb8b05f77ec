package domain

import "time"

// Idempotency records the outcome of a completed write, keyed by
// (user_id, scope, key). Scope identifies the operation (e.g.
// "POST /api/v1/movies/dto") so the same client key may be reused across
// different endpoints. A replay returns the resource referenced by ResourceID
// instead of repeating the write. Column types are left to the dialect so
// the same model migrates on SQLite and Postgres.
type Idempotency struct {
	ID         string    `gorm:"primaryKey"`
	UserID     string    `gorm:"not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope      string    `gorm:"not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key        string    `gorm:"not null;uniqueIndex:ux_user_scope_key,priority:3"`
	ResourceID string    `gorm:"not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
