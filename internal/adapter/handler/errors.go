package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

// failure is how one class of error is reported on both transports.
type failure struct {
	httpStatus int
	grpcCode   codes.Code
	message    string
}

// classify maps an error from the services to its transport status. Release
// failures are checked first: they also wrap the error that triggered them.
func classify(err error) failure {
	switch {
	case errors.Is(err, domain.ErrReservationRelease):
		return failure{http.StatusInternalServerError, codes.Internal, err.Error()}
	case errors.Is(err, domain.ErrInvalidRequest):
		return failure{http.StatusBadRequest, codes.InvalidArgument, err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return failure{http.StatusNotFound, codes.NotFound, err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInsufficientFunds):
		return failure{http.StatusConflict, codes.FailedPrecondition, err.Error()}
	case errors.Is(err, domain.ErrReservationNotHeld):
		return failure{http.StatusConflict, codes.FailedPrecondition, err.Error()}
	case errors.Is(err, domain.ErrRequestInProgress):
		return failure{http.StatusConflict, codes.Aborted, err.Error()}
	case errors.Is(err, domain.ErrJournalWrite):
		return failure{http.StatusServiceUnavailable, codes.Unavailable, domain.ErrJournalWrite.Error()}
	default:
		return failure{http.StatusInternalServerError, codes.Internal, "internal error"}
	}
}

func resourceName(err error) string {
	if resource, ok := domain.ResourceOf(err); ok {
		return string(resource)
	}
	return ""
}
