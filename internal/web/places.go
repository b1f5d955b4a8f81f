package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/ridebook/internal/places"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePlacesAutocomplete(w http.ResponseWriter, r *http.Request) {
	preds, err := s.Places.Autocomplete(r.Context(), r.URL.Query().Get("input"))
	switch {
	case errors.Is(err, places.ErrDisabled):
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "predictions": []places.Prediction{}})
	case err != nil:
		logFor(r.Context(), s.Log).Warn("places autocomplete", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"enabled": true, "predictions": []places.Prediction{}})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "predictions": preds})
	}
}

func (s *Server) handlePlaceDetails(w http.ResponseWriter, r *http.Request) {
	p, err := s.Places.Details(r.Context(), r.URL.Query().Get("place_id"))
	switch {
	case errors.Is(err, places.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "place not found"})
	case errors.Is(err, places.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "address lookup disabled"})
	case err != nil:
		logFor(r.Context(), s.Log).Warn("place details", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "address lookup failed"})
	default:
		writeJSON(w, http.StatusOK, p)
	}
}
