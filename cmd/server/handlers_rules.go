package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/internal/metrics"
	"github.com/liamcoop/uecnrules/rules"
)

// Generate handler
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	doc := ws.Generate()
	metrics.RulesGenerated.Inc()
	logger.Info("rule generated", "session", ws.ID, "rule_id", doc.RuleID, "rule_name", doc.RuleName)

	respondJSON(w, http.StatusOK, RuleResponse{
		Rule:    doc,
		Message: "Правило успешно создано!",
	})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	doc, ok := ws.LastRule()
	if !ok {
		respondDomainError(w, "rule not generated", errNoRule)
		return
	}

	respondJSON(w, http.StatusOK, RuleResponse{Rule: doc})
}

// Download rule handler. Serves the last document as an attachment named
// after the rule.
func (s *Server) handleDownloadRule(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	doc, ok := ws.LastRule()
	if !ok {
		respondDomainError(w, "rule not generated", errNoRule)
		return
	}

	data, err := rules.Marshal(doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode rule", err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": rules.DownloadFilename(doc.RuleName),
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Check conditions handler
func (s *Server) handleCheckConditions(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	report := s.checker.Check(ws.Form(), ws.Catalog())
	result := "invalid"
	if report.Valid {
		result = "valid"
	}
	metrics.ConditionChecks.WithLabelValues(result).Inc()

	respondJSON(w, http.StatusOK, report)
}

// Preview conditions handler. An empty body previews the catalog samples.
func (s *Server) handlePreviewConditions(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	respondJSON(w, http.StatusOK, s.checker.Preview(ws.Form(), ws.Catalog(), req.Record))
}
