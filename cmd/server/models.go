package main

import (
	"encoding/json"
	"time"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/rules"
	"github.com/liamcoop/uecnrules/session"
)

// API request and response models

// SessionResponse describes one editing session
type SessionResponse struct {
	Session session.Summary `json:"session"`
	Form    rules.FormState `json:"form"`
	Files   []FileView      `json:"files"`
}

// SessionsListResponse lists open sessions
type SessionsListResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

// FormResponse returns the form after a read or an edit
type FormResponse struct {
	Form    rules.FormState `json:"form"`
	ItemID  string          `json:"itemId,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ItemUpdateRequest sets one property of a list item
type ItemUpdateRequest struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// ExamplesResponse lists the example gallery
type ExamplesResponse struct {
	Examples []rules.Example `json:"examples"`
}

// FileView is a loaded file with its field total
type FileView struct {
	*catalog.File
	TotalFields int `json:"totalFields"`
}

// FilesListResponse lists loaded files
type FilesListResponse struct {
	Files []FileView `json:"files"`
}

// UploadError reports one rejected upload
type UploadError struct {
	Name    string `json:"name"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// UploadResponse reports a multipart upload. Files that parsed are added
// even when others fail.
type UploadResponse struct {
	Files    []FileView    `json:"files"`
	Errors   []UploadError `json:"errors,omitempty"`
	Messages []string      `json:"messages,omitempty"`
}

// AliasRequest renames a file or a sheet
type AliasRequest struct {
	Alias string `json:"alias"`
}

// SelectRequest includes or excludes a sheet
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// FileResponse returns a file after an edit
type FileResponse struct {
	File    FileView `json:"file"`
	Message string   `json:"message,omitempty"`
}

// StructureResponse is the plain-text structure of a file
type StructureResponse struct {
	Structure string `json:"structure"`
}

// FieldView is one catalog entry
type FieldView struct {
	Reference string `json:"reference"`
	catalog.Entry
}

// CatalogResponse lists the references available to rules
type CatalogResponse struct {
	Fields []FieldView `json:"fields"`
	Count  int         `json:"count"`
}

// RuleResponse carries a generated rule document
type RuleResponse struct {
	Rule    *rules.RuleDocument `json:"rule"`
	Message string              `json:"message,omitempty"`
}

// PreviewRequest supplies the record to evaluate conditions against.
// An absent record uses the catalog sample values.
type PreviewRequest struct {
	Record map[string]string `json:"record,omitempty"`
}

// PreferenceResponse wraps one stored preference
type PreferenceResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Message   string          `json:"message,omitempty"`
}

// PreferencesListResponse lists stored preferences
type PreferencesListResponse struct {
	Preferences []PreferenceResponse `json:"preferences"`
}

// MessageResponse is a bare confirmation
type MessageResponse struct {
	Message string `json:"message"`
}
