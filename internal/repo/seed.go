package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-movies-backend/internal/domain"
)

// DemoMovies is the catalogue inserted by SeedDemoMovies.
func DemoMovies() []domain.Movie {
	return []domain.Movie{
		{ID: "1", Title: "Inception", Description: "A mind-bending thriller", Genre: "Sci-Fi"},
		{ID: "2", Title: "The Godfather", Description: "A story about a powerful mafia family", Genre: "Crime"},
		{ID: "3", Title: "The Dark Knight", Description: "A superhero battles crime in Gotham", Genre: "Action"},
	}
}

// SeedDemoMovies saves DemoMovies when the movies table is empty and
// returns how many rows were written. A populated table is left untouched.
func SeedDemoMovies(ctx context.Context, db *gorm.DB) (int, error) {
	n, err := CountMovies(ctx, db)
	if err != nil || n > 0 {
		return 0, err
	}
	movies := DemoMovies()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range movies {
			if err := SaveMovie(ctx, tx, &movies[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(movies), nil
}
