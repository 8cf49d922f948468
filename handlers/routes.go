package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"travel-planner/middleware"
)

// NewRouter wires the ledger endpoints behind the shared middleware.
func NewRouter(placeHandler *PlaceHandler, allowedOrigins []string, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.CORSMiddleware(allowedOrigins))

	r.HandleFunc("/search_places", placeHandler.SearchPlaces).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/add_place", placeHandler.AddPlace).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/mark_place", placeHandler.MarkPlace).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/delete_place", placeHandler.DeletePlace).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	}).Methods(http.MethodGet)
	return r
}
