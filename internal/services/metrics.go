package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation label values for movieOps.
const (
	opCreate  = "create"
	opUpdate  = "update"
	opAdd     = "add_raw"
	opReplace = "update_raw"
	opDelete  = "delete"
)

// movieOps counts service writes by operation and outcome
// (ok, duplicate_title, not_found, error).
var movieOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "movies_operations_total",
		Help: "Movie write operations by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

func init() {
	prometheus.MustRegister(movieOps)
}

// record counts the outcome of op and returns err unchanged.
func (s *MovieService) record(op string, err error) error {
	movieOps.WithLabelValues(op, outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateTitle):
		return "duplicate_title"
	case errors.Is(err, ErrMovieNotFound):
		return "not_found"
	default:
		return "error"
	}
}
