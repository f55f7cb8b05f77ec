// Movie HTTP handlers.
//
// This file exposes REST endpoints for movie records:
//   - GET    /movies               (list)
//   - GET    /movies/{id}          (lookup; 404 with empty body when absent)
//   - POST   /movies               (raw insert)
//   - PUT    /movies/{id}          (raw replace)
//   - DELETE /movies/{id}          (delete, idempotent)
//   - POST   /movies/dto           (structured create, Idempotency-Key aware)
//   - PUT    /movies/dto           (structured update)
//   - ANY    /movies/hello/{role}  (role greetings)
//
// Handlers are transport-thin: they bind input, call the MovieService, and map
// its sentinel errors onto HTTP statuses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movies-backend/internal/domain"
	"github.com/tbourn/go-movies-backend/internal/http/middleware"
	"github.com/tbourn/go-movies-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// MovieService defines the movie operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use.
type MovieService interface {
	// Create stores a new movie, rejecting titles already in use.
	Create(ctx context.Context, in services.CreateMovieInput) (*domain.Movie, error)
	// Update replaces the mutable fields of an existing movie.
	Update(ctx context.Context, in services.UpdateMovieInput) (*domain.Movie, error)
	// AddMovie persists a record as-is.
	AddMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error)
	// UpdateMovie replaces a record as-is.
	UpdateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error)
	// GetMovie looks a record up; absence is reported via the boolean.
	GetMovie(ctx context.Context, id string) (*domain.Movie, bool, error)
	// ListMovies returns all records.
	ListMovies(ctx context.Context) ([]domain.Movie, error)
	// DeleteMovie removes a record; unknown ids are not an error.
	DeleteMovie(ctx context.Context, id string) error
}

// IdempotencyRecorder stores the outcome of a request made with an
// Idempotency-Key so that a retry can be answered from it.
type IdempotencyRecorder interface {
	Record(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Handlers groups the movie endpoints.
type Handlers struct {
	movies MovieService
	idem   IdempotencyRecorder
}

// New constructs Handlers. idem may be nil, in which case Idempotency-Key
// headers are validated upstream but outcomes are not stored.
func New(movies MovieService, idem IdempotencyRecorder) *Handlers {
	return &Handlers{movies: movies, idem: idem}
}

//
// DTOs
//

// CreateMovieRequest is the JSON payload for the structured create.
type CreateMovieRequest struct {
	Title       string `json:"title" example:"Inception"`
	Description string `json:"description" example:"A thief who steals corporate secrets through dream-sharing technology."`
	Genre       string `json:"genre" example:"Sci-Fi"`
}

// UpdateMovieRequest is the JSON payload for the structured update. Empty
// fields are stored as empty, not ignored.
type UpdateMovieRequest struct {
	ID          string `json:"id" example:"1"`
	Title       string `json:"title" example:"Inception"`
	Description string `json:"description" example:"Updated description"`
	Genre       string `json:"genre" example:"Thriller"`
}

// HelloResponse is returned by the role greeting endpoints.
type HelloResponse struct {
	Message string   `json:"message" example:"Hello, admin"`
	User    string   `json:"user" example:"admin"`
	Roles   []string `json:"roles" example:"ADMIN"`
}

//
// Handlers
//

// ListMovies godoc
// @ID          listMovies
// @Summary     List movies
// @Description Returns every stored movie. An empty store yields an empty array.
// @Tags        Movies
// @Produce     json
// @Security    BasicAuth
// @Success     200  {array}   domain.Movie
// @Failure     401  {object}  handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies [get]
func (h *Handlers) ListMovies(c *gin.Context) {
	items, err := h.movies.ListMovies(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	if items == nil {
		items = []domain.Movie{}
	}
	ok(c, http.StatusOK, items)
}

// GetMovie godoc
// @ID          getMovie
// @Summary     Get a movie
// @Description Returns the movie with the given id, or 404 with an empty body.
// @Tags        Movies
// @Produce     json
// @Security    BasicAuth
// @Param       id   path  string  true  "Movie ID"  example(1)
// @Success     200  {object}  domain.Movie
// @Success     404  {string}  string  "Not found (empty body)"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies/{id} [get]
func (h *Handlers) GetMovie(c *gin.Context) {
	m, found, err := h.movies.GetMovie(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNotFound)
		return
	}
	ok(c, http.StatusOK, m)
}

// AddMovie godoc
// @ID          addMovie
// @Summary     Insert a movie record (raw)
// @Description Persists the body as-is. No title check is made; an absent id is generated.
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BasicAuth
// @Param       body  body  domain.Movie  true  "Movie record"
// @Success     200  {object}  domain.Movie
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies [post]
func (h *Handlers) AddMovie(c *gin.Context) {
	var m domain.Movie
	if err := c.ShouldBindJSON(&m); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	saved, err := h.movies.AddMovie(c.Request.Context(), &m)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

// ReplaceMovie godoc
// @ID          replaceMovie
// @Summary     Replace a movie record (raw)
// @Description Stores the body under the path id, overwriting any id in the body. No checks are made.
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BasicAuth
// @Param       id    path  string        true  "Movie ID"  example(1)
// @Param       body  body  domain.Movie  true  "Movie record"
// @Success     200  {object}  domain.Movie
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies/{id} [put]
func (h *Handlers) ReplaceMovie(c *gin.Context) {
	var m domain.Movie
	if err := c.ShouldBindJSON(&m); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m.ID = c.Param("id")
	saved, err := h.movies.UpdateMovie(c.Request.Context(), &m)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

// DeleteMovie godoc
// @ID          deleteMovie
// @Summary     Delete a movie
// @Description Removes the movie. Deleting an unknown id also returns 204.
// @Tags        Movies
// @Security    BasicAuth
// @Param       id   path  string  true  "Movie ID"  example(1)
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies/{id} [delete]
func (h *Handlers) DeleteMovie(c *gin.Context) {
	if err := h.movies.DeleteMovie(c.Request.Context(), c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	noContent(c)
}

// CreateMovie godoc
// @ID          createMovie
// @Summary     Create a movie
// @Description Creates a movie with a title no other movie holds. A repeated Idempotency-Key returns the movie created the first time.
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BasicAuth
// @Param       Idempotency-Key  header  string  false  "Retry key"  example(3f0c9a1e-create-inception)
// @Param       body  body  handlers.CreateMovieRequest  true  "Movie fields"
// @Success     200  {object}  domain.Movie
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse "Duplicate title or bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies/dto [post]
func (h *Handlers) CreateMovie(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if middleware.IsReplay(c) {
		prev, found, err := h.movies.GetMovie(ctx, middleware.ReplayResourceID(c))
		if err == nil && found {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, prev)
			return
		}
		// The original movie is gone; handle as a fresh request.
	}

	m, err := h.movies.Create(ctx, services.CreateMovieInput{
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
	})
	if err != nil {
		serviceError(c, err)
		return
	}

	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil {
		if err := h.idem.Record(ctx, middleware.UserIDFrom(c), middleware.IdempotencyScope(c), key, m.ID, http.StatusOK); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("movie_id", m.ID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusOK, m)
}

// UpdateMovie godoc
// @ID          updateMovie
// @Summary     Update a movie
// @Description Replaces title, description and genre, keeps createDate, and appends one updateDate entry.
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BasicAuth
// @Param       body  body  handlers.UpdateMovieRequest  true  "Movie fields"
// @Success     200  {object}  domain.Movie
// @Failure     400  {object}  handlers.ErrorResponse "Duplicate title or bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Movie not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /movies/dto [put]
func (h *Handlers) UpdateMovie(c *gin.Context) {
	var req UpdateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.movies.Update(c.Request.Context(), services.UpdateMovieInput{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// Hello godoc
// @ID          hello
// @Summary     Role greeting
// @Description Greets the caller. Each greeting route admits only its own role.
// @Tags        Hello
// @Produce     json
// @Security    BasicAuth
// @Param       role  path  string  true  "Role"  Enums(user, admin, root)
// @Success     200  {object}  handlers.HelloResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse "Forbidden"
// @Router      /movies/hello/{role} [get]
func (h *Handlers) Hello(c *gin.Context) {
	user := middleware.UserIDFrom(c)
	ok(c, http.StatusOK, HelloResponse{
		Message: "Hello, " + user,
		User:    user,
		Roles:   middleware.RolesFrom(c),
	})
}

// serviceError maps MovieService errors onto responses.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateTitle):
		fail(c, http.StatusBadRequest, ErrCodeDuplicateTitle, err.Error())
	case errors.Is(err, services.ErrMovieNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
