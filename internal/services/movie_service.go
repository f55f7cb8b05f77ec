// Package services – MovieService
//
// This file implements the MovieService, which owns the write rules for
// movie records. Each write type has two entry points:
//
//   - structured (Create, Update): enforce title uniqueness among live
//     records and maintain the audit trail (createDate set once, one
//     updateDate entry appended per update);
//   - raw (AddMovie, UpdateMovie): persist the caller's record as-is with no
//     checks, for bulk and administrative use.
//
// The two paths stay separate on purpose: raw writes can store duplicate
// titles that the structured path would reject.
//
// Structured writes serialize on the target title inside this process, so
// the existence check and the write cannot interleave with another
// structured write for the same title. Raw writes and other processes are
// not covered by that lock.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-movies-backend/internal/domain"
	"github.com/tbourn/go-movies-backend/internal/observability"
	"github.com/tbourn/go-movies-backend/internal/repo"
)

// MovieRepo defines the record store contract required by MovieService.
type MovieRepo interface {
	// CreateMovie inserts a new row, generating an id when empty.
	CreateMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error

	// SaveMovie fully replaces (or inserts) the row keyed by m.ID.
	SaveMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error

	// GetMovie fetches a row by id, returning repo.ErrNotFound when absent.
	GetMovie(ctx context.Context, db *gorm.DB, id string) (*domain.Movie, error)

	// MovieTitleExists reports whether any row holds exactly title.
	MovieTitleExists(ctx context.Context, db *gorm.DB, title string) (bool, error)

	// ListMovies returns all rows in store order.
	ListMovies(ctx context.Context, db *gorm.DB) ([]domain.Movie, error)

	// DeleteMovie removes a row; missing ids are not an error.
	DeleteMovie(ctx context.Context, db *gorm.DB, id string) error
}

// CreateMovieInput carries the fields accepted by the structured create.
type CreateMovieInput struct {
	Title       string
	Description string
	Genre       string
}

// UpdateMovieInput carries the fields accepted by the structured update.
// Title, Description and Genre replace the stored values verbatim, empty
// strings included.
type UpdateMovieInput struct {
	ID          string
	Title       string
	Description string
	Genre       string
}

// MovieService provides create/read/update/delete over movies.
type MovieService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the movie record store.
	Repo MovieRepo
	// Now returns the current time; tests replace it for determinism.
	Now func() time.Time

	locksOnce sync.Once
	locks     *titleLocks
}

// NewMovieService constructs a MovieService using UTC wall-clock time.
func NewMovieService(db *gorm.DB, r MovieRepo) *MovieService {
	return &MovieService{
		DB:   db,
		Repo: r,
		Now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new movie after checking that no live movie holds the
// same title. The result has a store-assigned id, createDate set to now,
// and an empty updateDate.
func (s *MovieService) Create(ctx context.Context, in CreateMovieInput) (_ *domain.Movie, err error) {
	ctx, end := observability.StartSpan(ctx, "movies.create", attribute.String("movie.title", in.Title))
	defer func() { end(err) }()

	unlock := s.titleLocks().lock(in.Title)
	defer unlock()

	exists, err := s.Repo.MovieTitleExists(ctx, s.DB, in.Title)
	if err != nil {
		return nil, s.record(opCreate, err)
	}
	if exists {
		zerolog.Ctx(ctx).Debug().Str("title", in.Title).Msg("create rejected: duplicate title")
		return nil, s.record(opCreate, ErrDuplicateTitle)
	}

	now := s.now()
	m := &domain.Movie{
		Title:       in.Title,
		Description: in.Description,
		Genre:       in.Genre,
		CreateDate:  &now,
		UpdateDate:  []time.Time{},
	}
	if err := s.Repo.CreateMovie(ctx, s.DB, m); err != nil {
		return nil, s.record(opCreate, err)
	}
	s.record(opCreate, nil)
	return m, nil
}

// Update replaces the title, description and genre of an existing movie.
//
// Semantics:
//   - Unknown id: ErrMovieNotFound, nothing is written.
//   - A title different from the stored one that another movie already
//     holds: ErrDuplicateTitle, nothing is written. Keeping the current
//     title never conflicts.
//   - Otherwise the id and createDate are preserved and exactly one
//     timestamp is appended to updateDate, even when no field changed.
func (s *MovieService) Update(ctx context.Context, in UpdateMovieInput) (_ *domain.Movie, err error) {
	ctx, end := observability.StartSpan(ctx, "movies.update",
		attribute.String("movie.id", in.ID),
		attribute.String("movie.title", in.Title),
	)
	defer func() { end(err) }()

	unlock := s.titleLocks().lock(in.Title)
	defer unlock()

	existing, err := s.Repo.GetMovie(ctx, s.DB, in.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, s.record(opUpdate, ErrMovieNotFound)
		}
		return nil, s.record(opUpdate, err)
	}

	if in.Title != existing.Title {
		exists, err := s.Repo.MovieTitleExists(ctx, s.DB, in.Title)
		if err != nil {
			return nil, s.record(opUpdate, err)
		}
		if exists {
			zerolog.Ctx(ctx).Debug().
				Str("movie_id", in.ID).
				Str("title", in.Title).
				Msg("update rejected: duplicate title")
			return nil, s.record(opUpdate, ErrDuplicateTitle)
		}
	}

	m := &domain.Movie{
		ID:          existing.ID,
		Title:       in.Title,
		Description: in.Description,
		Genre:       in.Genre,
		CreateDate:  existing.CreateDate,
		UpdateDate:  s.appendUpdate(existing.UpdateDate),
	}
	if err := s.Repo.SaveMovie(ctx, s.DB, m); err != nil {
		return nil, s.record(opUpdate, err)
	}
	s.record(opUpdate, nil)
	return m, nil
}

// AddMovie persists m exactly as given (raw create). No title check is
// made and the audit fields are left to the caller. An empty id is
// assigned by the store; an existing id is overwritten.
func (s *MovieService) AddMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	if err := s.Repo.SaveMovie(ctx, s.DB, m); err != nil {
		return nil, s.record(opAdd, err)
	}
	s.record(opAdd, nil)
	return m, nil
}

// UpdateMovie fully replaces the movie keyed by m.ID with m (raw update).
// No title check is made and updateDate is stored as supplied.
func (s *MovieService) UpdateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	if err := s.Repo.SaveMovie(ctx, s.DB, m); err != nil {
		return nil, s.record(opReplace, err)
	}
	s.record(opReplace, nil)
	return m, nil
}

// GetMovie looks a movie up by id. Absence is reported through the boolean,
// not as an error.
func (s *MovieService) GetMovie(ctx context.Context, id string) (*domain.Movie, bool, error) {
	m, err := s.Repo.GetMovie(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// ListMovies returns every stored movie in store order.
func (s *MovieService) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	return s.Repo.ListMovies(ctx, s.DB)
}

// DeleteMovie removes the movie with id. Unknown ids are a no-op.
func (s *MovieService) DeleteMovie(ctx context.Context, id string) error {
	if err := s.Repo.DeleteMovie(ctx, s.DB, id); err != nil {
		return s.record(opDelete, err)
	}
	s.record(opDelete, nil)
	return nil
}

// appendUpdate returns a copy of prev with one new timestamp at the end.
// The new entry is forced past the previous one so the trail stays strictly
// increasing even when the clock has not advanced.
func (s *MovieService) appendUpdate(prev []time.Time) []time.Time {
	next := s.now()
	if n := len(prev); n > 0 && !next.After(prev[n-1]) {
		next = prev[n-1].Add(time.Nanosecond)
	}
	out := make([]time.Time, 0, len(prev)+1)
	out = append(out, prev...)
	return append(out, next)
}

func (s *MovieService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *MovieService) titleLocks() *titleLocks {
	s.locksOnce.Do(func() { s.locks = newTitleLocks() })
	return s.locks
}
