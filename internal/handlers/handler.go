// Package handlers translates HTTP requests into service calls and
// service outcomes back into stable response categories.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	api "github.com/urbanlab/popforecast/api/v1alpha1"
	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/service"
	"github.com/urbanlab/popforecast/pkg/requestid"
)

// JobService is the slice of the job service the handlers need.
type JobService interface {
	EnqueueBalance(ctx context.Context, territoryID int64, startDate *time.Time) (string, error)
	EnqueueDivide(ctx context.Context, territoryID int64, startDate *time.Time, fromPrevious *string) (string, error)
	EnqueueRestore(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario, fromScratch bool) (string, error)
	Status(ctx context.Context, jobID string) (*service.JobStatus, error)
}

type Handler struct {
	jobs      JobService
	validator *validator.Validate
	debug     bool
}

func New(jobs JobService, debug bool) *Handler {
	return &Handler{
		jobs:      jobs,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		debug:     debug,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, payload render.Renderer) {
	render.Status(r, statusCode)
	_ = render.Render(w, r, payload)
}

// renderError writes the error payload with the request id attached for
// correlation.
func renderError(w http.ResponseWriter, r *http.Request, statusCode int, payload api.Error) {
	payload.RequestID = requestid.FromRequest(r)
	writeJSON(w, r, statusCode, payload)
}

// serviceErrorStatus maps the job-service error types onto response
// codes. Unknown errors are internal.
func serviceErrorStatus(err error) int {
	var notFound *service.ErrJobNotFound
	var invalid *service.ErrPreviousJobInvalid
	var notFinished *service.ErrPreviousJobNotFinished

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &notFinished):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
