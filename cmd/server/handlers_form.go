package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/rules"
)

// List sessions handler
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SessionsListResponse{Sessions: s.sessions.List()})
}

// Create session handler
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ws := s.sessions.Create()

	respondJSON(w, http.StatusCreated, SessionResponse{
		Session: ws.Summary(),
		Form:    ws.Form(),
		Files:   []FileView{},
	})
}

// Get session handler
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{
		Session: ws.Summary(),
		Form:    ws.Form(),
		Files:   fileViews(ws.Files().Files()),
	})
}

// Delete session handler
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionId")); err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List examples handler
func (s *Server) handleListExamples(w http.ResponseWriter, r *http.Request) {
	examples, err := rules.Examples()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load examples", err)
		return
	}

	respondJSON(w, http.StatusOK, ExamplesResponse{Examples: examples})
}

// Get form handler
func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{Form: ws.Form()})
}

// Patch form handler. The body maps field names to values; either every
// field applies or none does.
func (s *Server) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	form, err := ws.Edit(func(f *rules.FormState) error {
		return f.ApplyPatch(patch)
	})
	if err != nil {
		respondDomainError(w, "failed to update form", err)
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{Form: form})
}

// Reset form handler. Loaded files are kept.
func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{
		Form:    ws.Reset(),
		Message: "Форма очищена!",
	})
}

// Load template handler
func (s *Server) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var t rules.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		respondError(w, http.StatusBadRequest, "invalid template", err)
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{
		Form:    ws.LoadTemplate(t),
		Message: "Пример загружен!",
	})
}

// Load example handler
func (s *Server) handleLoadExample(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	example, err := rules.LookupExample(chi.URLParam(r, "exampleId"))
	if err != nil {
		respondDomainError(w, "example not found", err)
		return
	}

	logger.Debug("example loaded", "session", ws.ID, "example", example.ID)
	respondJSON(w, http.StatusOK, FormResponse{
		Form:    ws.LoadTemplate(example.Template),
		Message: "Пример правила загружен!",
	})
}

// Add item handler
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var id string
	form, err := ws.Edit(func(f *rules.FormState) error {
		var err error
		id, err = f.AddItem(chi.URLParam(r, "kind"))
		return err
	})
	if err != nil {
		respondDomainError(w, "failed to add item", err)
		return
	}

	respondJSON(w, http.StatusCreated, FormResponse{Form: form, ItemID: id})
}

// Update item handler
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req ItemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Property == "" {
		respondError(w, http.StatusBadRequest, "property is required", nil)
		return
	}

	kind, itemID := chi.URLParam(r, "kind"), chi.URLParam(r, "itemId")
	form, err := ws.Edit(func(f *rules.FormState) error {
		return f.UpdateItem(kind, itemID, req.Property, req.Value)
	})
	if err != nil {
		respondDomainError(w, "failed to update item", err)
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{Form: form})
}

// Remove item handler
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	kind, itemID := chi.URLParam(r, "kind"), chi.URLParam(r, "itemId")
	form, err := ws.Edit(func(f *rules.FormState) error {
		return f.RemoveItem(kind, itemID)
	})
	if err != nil {
		respondDomainError(w, "failed to remove item", err)
		return
	}

	respondJSON(w, http.StatusOK, FormResponse{Form: form})
}
