package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/liamcoop/uecnrules/prefs"
)

const maxPreferenceBytes = 4 << 20

func preferenceResponse(p *prefs.Preference, message string) PreferenceResponse {
	return PreferenceResponse{
		Key:       p.Key,
		Value:     p.Value,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Message:   message,
	}
}

// preferenceMessage is the confirmation shown after a preference is saved
func preferenceMessage(key string, value json.RawMessage) string {
	switch key {
	case prefs.KeySimpleMode:
		if string(bytes.TrimSpace(value)) == "true" {
			return "Визуальные эффекты отключены"
		}
		return "Визуальные эффекты включены"
	case prefs.KeyHistoricalData:
		return "Файл сохранен!"
	default:
		return "Настройка сохранена"
	}
}

// List preferences handler
func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	list, err := s.prefs.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list preferences", err)
		return
	}

	resp := PreferencesListResponse{Preferences: make([]PreferenceResponse, 0, len(list))}
	for _, p := range list {
		resp.Preferences = append(resp.Preferences, preferenceResponse(p, ""))
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get preference handler
func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Get(r.Context(), pathParam(r, "key"))
	if err != nil {
		respondDomainError(w, "preference not found", err)
		return
	}

	respondJSON(w, http.StatusOK, preferenceResponse(p, ""))
}

// Set preference handler. The request body is the JSON value itself.
func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPreferenceBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "preference too large", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	key := pathParam(r, "key")
	p, err := s.prefs.Set(r.Context(), key, json.RawMessage(body))
	if err != nil {
		respondDomainError(w, "failed to save preference", err)
		return
	}

	respondJSON(w, http.StatusOK, preferenceResponse(p, preferenceMessage(key, p.Value)))
}

// Delete preference handler
func (s *Server) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := s.prefs.Delete(r.Context(), pathParam(r, "key")); err != nil {
		respondDomainError(w, "failed to delete preference", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
