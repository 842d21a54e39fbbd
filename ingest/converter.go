package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/internal/metrics"
)

// formField is the multipart field the conversion service reads
const formField = "mdb_file"

// ConvertResponse is the conversion service reply
type ConvertResponse struct {
	Success bool    `json:"success"`
	Tables  []Table `json:"tables"`
	Error   string  `json:"error,omitempty"`
}

// Table is one database table
type Table struct {
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	RowCount int      `json:"row_count"`
}

// Column is one table column with an optional sample
type Column struct {
	Name        string `json:"name"`
	SampleValue any    `json:"sample_value"`
}

// ConverterClient calls the external database conversion service.
// Calls are never retried.
type ConverterClient struct {
	url    string
	client *http.Client
}

// NewConverterClient creates a client for the service endpoint
func NewConverterClient(url string, timeout time.Duration) *ConverterClient {
	return &ConverterClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Convert uploads a database file and maps its tables to sheets
func (c *ConverterClient) Convert(ctx context.Context, filename string, r io.Reader) (file *catalog.File, err error) {
	start := time.Now()
	defer func() { metrics.ObserveConverter(start, err) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(formField, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion service unavailable: %w", err)
	}
	defer resp.Body.Close()

	var result ConvertResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && result.Error != "" {
			return nil, fmt.Errorf("ошибка сервера: %d: %s", resp.StatusCode, result.Error)
		}
		return nil, fmt.Errorf("ошибка сервера: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("invalid conversion response: %w", decodeErr)
	}
	if !result.Success {
		if result.Error == "" {
			return nil, errors.New("неизвестная ошибка конвертации")
		}
		return nil, errors.New(result.Error)
	}
	if len(result.Tables) == 0 {
		return nil, errors.New("в базе данных не найдено таблиц")
	}

	return TablesToFile(filename, result.Tables), nil
}

// TablesToFile maps converted tables to a catalog file. Every table starts
// selected.
func TablesToFile(filename string, tables []Table) *catalog.File {
	file := &catalog.File{Name: filename, FromDatabase: true}

	for i, t := range tables {
		sheet := &catalog.Sheet{
			Name:         t.Name,
			Fields:       make([]string, 0, len(t.Columns)),
			Descriptions: make(map[string]string, len(t.Columns)),
			Selected:     true,
			Index:        i,
			RowCount:     t.RowCount,
			FromDatabase: true,
		}
		for _, col := range t.Columns {
			sheet.Fields = append(sheet.Fields, col.Name)
			sheet.Descriptions[col.Name] = Describe(col.Name, sampleString(col.SampleValue))
		}
		file.Sheets = append(file.Sheets, sheet)
	}

	return file
}

// sampleString renders a JSON sample of any scalar type
func sampleString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return fmt.Sprintf("%v", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}
