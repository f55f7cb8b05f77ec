// Package services defines the business logic of the movie service.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes happens in the handler layer:
// ErrDuplicateTitle maps to 400 and ErrMovieNotFound to 404. Any other error
// is a store failure and surfaces as a 5xx.
package services

import "errors"

var (
	// ErrDuplicateTitle is returned by the structured create and update when
	// another live movie already holds the requested title.
	ErrDuplicateTitle = errors.New("movie with this title already exists")

	// ErrMovieNotFound is returned by the structured update when the id does
	// not resolve to a stored movie.
	ErrMovieNotFound = errors.New("movie not found")
)
