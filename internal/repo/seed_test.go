package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-movies-backend/internal/domain"
)

func TestSeedDemoMovies_OnlyWhenEmpty(t *testing.T) {
	db := newMovieRepoDB(t, &domain.Movie{})
	ctx := context.Background()

	n, err := SeedDemoMovies(ctx, db)
	if err != nil {
		t.Fatalf("SeedDemoMovies: %v", err)
	}
	if n != len(DemoMovies()) {
		t.Fatalf("seeded %d; want %d", n, len(DemoMovies()))
	}
	got, err := GetMovie(ctx, db, "1")
	if err != nil || got.Title != "Inception" {
		t.Fatalf("expected Inception under id 1, got=%+v err=%v", got, err)
	}

	// A second run leaves the table alone.
	n, err = SeedDemoMovies(ctx, db)
	if err != nil || n != 0 {
		t.Fatalf("second seed = %d, %v; want 0, nil", n, err)
	}
	if total, _ := CountMovies(ctx, db); total != 3 {
		t.Fatalf("expected 3 movies, got %d", total)
	}
}

func TestSeedDemoMovies_Error_NoTable(t *testing.T) {
	db := newMovieRepoDB(t)
	if _, err := SeedDemoMovies(context.Background(), db); err == nil {
		t.Fatalf("expected error without movies table")
	}
}
