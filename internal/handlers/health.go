package handlers

import (
	"net/http"

	api "github.com/urbanlab/popforecast/api/v1alpha1"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.Health{Status: "ok"})
}
