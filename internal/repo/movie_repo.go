// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the record store for the Movie model.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business rules, only persistence and
// query composition. Title uniqueness and audit timestamps are enforced one
// layer up, in services.MovieService.
//
// Error semantics:
//   - GetMovie returns ErrNotFound (gorm.ErrRecordNotFound) for a missing id.
//   - Any other driver error is returned unchanged.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-movies-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMovie inserts m as a new row. An empty ID is filled in with a
// freshly generated identifier before the insert; an existing ID that is
// already taken fails with the driver's constraint error.
func CreateMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return db.WithContext(ctx).Create(m).Error
}

// SaveMovie writes m as a full replacement of the row with the same ID,
// inserting it when no such row exists. An empty ID is generated first.
// Every column is overwritten, including CreateDate and UpdateDate.
func SaveMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(m).Error
}

// GetMovie fetches a single movie by id, or ErrNotFound.
func GetMovie(ctx context.Context, db *gorm.DB, id string) (*domain.Movie, error) {
	var m domain.Movie
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MovieTitleExists reports whether any row holds exactly title
// (case-sensitive comparison).
func MovieTitleExists(ctx context.Context, db *gorm.DB, title string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Movie{}).
		Where("title = ?", title).
		Count(&n).Error
	return n > 0, err
}

// ListMovies returns every row in the store's natural order. It returns an
// empty, non-nil slice when the table is empty.
func ListMovies(ctx context.Context, db *gorm.DB) ([]domain.Movie, error) {
	out := []domain.Movie{}
	err := db.WithContext(ctx).Find(&out).Error
	return out, err
}

// CountMovies returns the number of stored movies.
func CountMovies(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Movie{}).Count(&n).Error
	return n, err
}

// DeleteMovie removes the row with id. Deleting a missing id is not an error.
func DeleteMovie(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Movie{}).Error
}
