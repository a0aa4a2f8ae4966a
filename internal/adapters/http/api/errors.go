package api

import (
	"errors"
	"net/http"

	"github.com/okian/lasertrack/internal/adapters/repository"
	service "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrEmptyBody  = errors.New("empty request body")
)

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrMatchNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, service.ErrInvalidLimit):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrEmptyBody),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, types.ErrInvalid),
		errors.Is(err, model.ErrUnknownMode),
		errors.Is(err, rating.ErrTeamCount),
		errors.Is(err, rating.ErrEmptyTeam),
		errors.Is(err, rating.ErrTooFewPlayers):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal_error"
}
