package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/urbanlab/popforecast/api/v1alpha1"
	"github.com/urbanlab/popforecast/internal/jobs"
	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/service"
)

const dateLayout = "2006-01-02"

// Balance enqueues a balance job for one territory.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	territoryID, err := parseTerritoryID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}
	startDate, err := parseStartDate(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}

	jobID, err := h.jobs.EnqueueBalance(r.Context(), territoryID, startDate)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, api.Error{Message: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusCreated, api.JobReply{JobID: jobID, Status: string(service.JobStateQueued)})
}

// Divide enqueues a divide job. A from_previous reference reuses the
// named balance job's output; it excludes start_date.
func (h *Handler) Divide(w http.ResponseWriter, r *http.Request) {
	territoryID, err := parseTerritoryID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}
	startDate, err := parseStartDate(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}

	var fromPrevious *string
	if v := r.URL.Query().Get("from_previous"); v != "" {
		fromPrevious = &v
	}
	if startDate != nil && fromPrevious != nil {
		renderError(w, r, http.StatusBadRequest,
			api.Error{Message: "start_date and from_previous cannot be combined"})
		return
	}

	jobID, err := h.jobs.EnqueueDivide(r.Context(), territoryID, startDate, fromPrevious)
	if err != nil {
		renderError(w, r, serviceErrorStatus(err), api.Error{Message: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusCreated, api.JobReply{JobID: jobID, Status: string(service.JobStateQueued)})
}

type restoreParams struct {
	YearBegin   int    `validate:"required"`
	YearEnd     int    `validate:"required,gtfield=YearBegin"`
	Scenario    string `validate:"oneof=NEGATIVE NEUTRAL POSITIVE"`
	FromScratch bool
}

// Restore enqueues a restore job covering the years strictly between
// year_begin and year_end inclusive of the latter.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	territoryID, err := parseTerritoryID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}
	params, err := h.parseRestoreParams(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, api.Error{Message: err.Error()})
		return
	}

	jobID, err := h.jobs.EnqueueRestore(r.Context(), territoryID,
		params.YearBegin, params.YearEnd-params.YearBegin,
		models.Scenario(params.Scenario), params.FromScratch)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, api.Error{Message: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusCreated, api.JobReply{JobID: jobID, Status: string(service.JobStateQueued)})
}

// Status reports one job. Failed jobs answer with the response category
// of the failure their worker captured.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	status, err := h.jobs.Status(r.Context(), jobID)
	if err != nil {
		renderError(w, r, serviceErrorStatus(err), api.Error{Message: err.Error()})
		return
	}
	if status.State == service.JobStateFailed {
		h.renderFailure(w, r, status)
		return
	}
	writeJSON(w, r, http.StatusOK, api.JobStatusReply{
		JobID:       status.ID,
		Kind:        status.Kind,
		Status:      string(status.State),
		EnqueuedAt:  status.EnqueuedAt,
		PerformedAt: status.FinishedAt,
	})
}

// renderFailure maps a captured job failure back onto the response code
// its original error category would have produced.
func (h *Handler) renderFailure(w http.ResponseWriter, r *http.Request, status *service.JobStatus) {
	failure := status.Failure

	statusCode := http.StatusBadGateway
	payload := api.Error{JobID: status.ID}
	switch failure.Kind {
	case jobs.FailureObjectNotFound:
		statusCode = http.StatusNotFound
		payload.Message = failure.Message
	case jobs.FailureAPIConnection:
		payload.Message = failure.Message
	case jobs.FailureAPITimeout:
		statusCode = http.StatusGatewayTimeout
		payload.Message = failure.Message
	case jobs.FailureInvalidStatusCode:
		payload.Message = failure.Message
	case jobs.FailureRestoreInProgress:
		statusCode = http.StatusConflict
		payload.Message = failure.Message
	default:
		payload.Message = "job " + status.ID + " failed"
	}
	if h.debug {
		payload.Type = string(failure.Kind)
		payload.Message = failure.Message
		payload.Trace = failure.Trace
	}
	writeJSON(w, r, statusCode, payload)
}

func (h *Handler) parseRestoreParams(r *http.Request) (*restoreParams, error) {
	query := r.URL.Query()
	params := &restoreParams{
		Scenario:    string(models.ScenarioNeutral),
		FromScratch: true,
	}
	var err error
	if params.YearBegin, err = strconv.Atoi(query.Get("year_begin")); err != nil {
		return nil, err
	}
	if params.YearEnd, err = strconv.Atoi(query.Get("year_end")); err != nil {
		return nil, err
	}
	if v := query.Get("scenario"); v != "" {
		params.Scenario = v
	}
	if v := query.Get("from_scratch"); v != "" {
		if params.FromScratch, err = strconv.ParseBool(v); err != nil {
			return nil, err
		}
	}
	if err := h.validator.Struct(params); err != nil {
		return nil, err
	}
	return params, nil
}

func parseTerritoryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "territory_id"), 10, 64)
}

func parseStartDate(r *http.Request) (*time.Time, error) {
	v := r.URL.Query().Get("start_date")
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
