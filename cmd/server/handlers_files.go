package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/ingest"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/internal/metrics"
)

func fileView(f *catalog.File) FileView {
	return FileView{File: f, TotalFields: f.TotalFields()}
}

func fileViews(files []*catalog.File) []FileView {
	views := make([]FileView, 0, len(files))
	for _, f := range files {
		views = append(views, fileView(f))
	}
	return views
}

// uploadMessage summarizes a loaded file: sheet and field counts plus the
// first fields of the first sheet
func uploadMessage(f *catalog.File) string {
	counts := fmt.Sprintf("%d полей", f.TotalFields())
	if len(f.Sheets) > 1 {
		unit := "листов"
		if f.FromDatabase {
			unit = "таблиц"
		}
		counts = fmt.Sprintf("%d %s, %s", len(f.Sheets), unit, counts)
	}

	msg := fmt.Sprintf("Файл %q загружен (%s)", f.Name, counts)
	if f.FromDatabase {
		msg = fmt.Sprintf("База данных %q загружена (%s)", f.Name, counts)
	}

	if len(f.Sheets) == 0 || len(f.Sheets[0].Fields) == 0 {
		return msg
	}
	fields := f.Sheets[0].Fields
	sample := strings.Join(fields[:min(3, len(fields))], ", ")
	if len(fields) > 3 {
		sample += "..."
	}
	return msg + ". Поля: " + sample
}

func uploadErrorMessage(name string, err error) string {
	if k, _ := ingest.Kind(name); k == ingest.KindDatabase {
		return "Ошибка при чтении MDB файла: " + err.Error()
	}
	return "Ошибка при чтении файла: " + err.Error()
}

// Upload files handler. Accepts multipart form data with one or more
// "files" parts; files that parse are added even if others fail.
func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large", err)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files in request", nil)
		return
	}

	uploads := make([]ingest.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, ingest.Upload{Name: fh.Filename, Open: openPart(fh)})
	}

	resp := UploadResponse{Files: []FileView{}}
	for _, res := range s.parser.ParseAll(r.Context(), uploads) {
		kind := res.Kind
		if kind == "" {
			kind = "unknown"
		}

		if res.Err != nil {
			metrics.FilesIngested.WithLabelValues(kind, "error").Inc()
			resp.Errors = append(resp.Errors, UploadError{
				Name:    res.Name,
				Error:   res.Err.Error(),
				Message: uploadErrorMessage(res.Name, res.Err),
			})
			continue
		}

		metrics.FilesIngested.WithLabelValues(kind, "ok").Inc()
		added := ws.Files().Add(res.File)
		resp.Files = append(resp.Files, fileView(added))
		resp.Messages = append(resp.Messages, uploadMessage(added))
		logger.Info("file loaded", "session", ws.ID, "file", added.Name, "alias", added.Alias, "sheets", len(added.Sheets))
	}

	status := http.StatusOK
	if len(resp.Files) == 0 {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, resp)
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// List files handler
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, FilesListResponse{Files: fileViews(ws.Files().Files())})
}

// Get file handler
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	f, err := ws.Files().Get(chi.URLParam(r, "fileId"))
	if err != nil {
		respondDomainError(w, "file not found", err)
		return
	}

	respondJSON(w, http.StatusOK, FileResponse{File: fileView(f)})
}

// Delete file handler
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	if err := ws.Files().Remove(chi.URLParam(r, "fileId")); err != nil {
		respondDomainError(w, "file not found", err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Файл удален"})
}

// aliasErrorMessage is the user-facing text for a rejected alias
func aliasErrorMessage(err error, sheet bool) string {
	switch {
	case errors.Is(err, catalog.ErrEmptyAlias) && sheet:
		return "Алиас листа не может быть пустым"
	case errors.Is(err, catalog.ErrEmptyAlias):
		return "Алиас не может быть пустым"
	case errors.Is(err, catalog.ErrDuplicateAlias):
		return "Такой алиас уже используется"
	case errors.Is(err, catalog.ErrInvalidAlias):
		return "Недопустимый алиас"
	default:
		return "failed to rename"
	}
}

// Rename file handler. Sheet aliases follow the new file alias.
func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req AliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	fileID := chi.URLParam(r, "fileId")
	if err := ws.Files().RenameFileAlias(fileID, req.Alias); err != nil {
		respondDomainError(w, aliasErrorMessage(err, false), err)
		return
	}

	s.respondFile(w, ws.Files(), fileID, "Алиас обновлен")
}

// Rename sheet handler
func (s *Server) handleRenameSheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req AliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	fileID := chi.URLParam(r, "fileId")
	if err := ws.Files().RenameSheetAlias(fileID, pathParam(r, "sheet"), req.Alias); err != nil {
		respondDomainError(w, aliasErrorMessage(err, true), err)
		return
	}

	s.respondFile(w, ws.Files(), fileID, "Алиас листа обновлен")
}

// Toggle sheet handler
func (s *Server) handleToggleSheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	fileID, sheet := chi.URLParam(r, "fileId"), pathParam(r, "sheet")
	if err := ws.Files().ToggleSheet(fileID, sheet, req.Selected); err != nil {
		respondDomainError(w, "sheet not found", err)
		return
	}

	action := "исключен"
	if req.Selected {
		action = "добавлен"
	}
	s.respondFile(w, ws.Files(), fileID, fmt.Sprintf("Лист %q %s", sheet, action))
}

// Select all sheets handler
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "fileId")
	if err := ws.Files().SelectAll(fileID); err != nil {
		respondDomainError(w, "file not found", err)
		return
	}

	s.respondFile(w, ws.Files(), fileID, "Все листы выбраны")
}

// Select no sheets handler
func (s *Server) handleSelectNone(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "fileId")
	if err := ws.Files().SelectNone(fileID); err != nil {
		respondDomainError(w, "file not found", err)
		return
	}

	s.respondFile(w, ws.Files(), fileID, "Все листы исключены")
}

// File structure handler
func (s *Server) handleFileStructure(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	structure, err := ws.Files().Structure(chi.URLParam(r, "fileId"))
	if err != nil {
		respondDomainError(w, "file not found", err)
		return
	}

	respondJSON(w, http.StatusOK, StructureResponse{Structure: structure})
}

// Catalog handler
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	cat := ws.Catalog()
	refs := cat.References()
	fields := make([]FieldView, 0, len(refs))
	for _, ref := range refs {
		entry, _ := cat.Lookup(ref)
		fields = append(fields, FieldView{Reference: ref, Entry: entry})
	}

	respondJSON(w, http.StatusOK, CatalogResponse{Fields: fields, Count: len(fields)})
}

func (s *Server) respondFile(w http.ResponseWriter, set *catalog.Set, fileID, message string) {
	f, err := set.Get(fileID)
	if err != nil {
		respondDomainError(w, "file not found", err)
		return
	}
	respondJSON(w, http.StatusOK, FileResponse{File: fileView(f), Message: message})
}
