package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"travel-planner/middleware"
	"travel-planner/models"
	"travel-planner/services"
	"travel-planner/utils/errors"
)

type PlaceHandler struct {
	placeService *services.PlaceService
	logger       *zap.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewPlaceHandler(placeService *services.PlaceService, logger *zap.Logger) *PlaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaceHandler{placeService: placeService, logger: logger}
}

func (h *PlaceHandler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.writeError(w, r, errors.Validation("query parameter is required"))
		return
	}
	location := r.URL.Query().Get("location")

	candidates, err := h.placeService.SearchPlaces(r.Context(), query, location)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (h *PlaceHandler) AddPlace(w http.ResponseWriter, r *http.Request) {
	var input models.Place
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, errors.ErrInvalidInput)
		return
	}

	place, err := h.placeService.AddPlace(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, place)
}

func (h *PlaceHandler) MarkPlace(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID       string          `json:"id"`
		Visited  *bool           `json:"visited"`
		Category models.Category `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, errors.ErrInvalidInput)
		return
	}
	if input.Visited == nil {
		h.writeError(w, r, errors.Validation("visited is required"))
		return
	}

	update := models.PlaceUpdate{ID: input.ID, Visited: *input.Visited, Category: input.Category}
	if err := h.placeService.MarkPlace(r.Context(), update); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Place updated"})
}

func (h *PlaceHandler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, errors.ErrInvalidInput)
		return
	}

	if err := h.placeService.DeletePlace(r.Context(), input.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Place deleted"})
}

// writeError logs server-side failures before rendering them.
func (h *PlaceHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := middleware.AsAPIError(err)
	if apiErr.Status >= 500 {
		h.logger.Error("server error",
			zap.String("path", r.URL.Path),
			zap.String("code", apiErr.Code),
			zap.String("details", apiErr.Details),
			zap.Error(err),
		)
	}
	middleware.WriteError(w, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
