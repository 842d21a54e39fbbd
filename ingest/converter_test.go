package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestConverterClient_Convert verifies the multipart request and table mapping
func TestConverterClient_Convert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		file, header, err := r.FormFile("mdb_file")
		if err != nil {
			t.Errorf("FormFile(mdb_file) failed: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename != "base.mdb" || string(body) != "MDBDATA" {
			t.Errorf("upload = %s / %q", header.Filename, body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"tables": []map[string]any{
				{
					"name":      "Отказы",
					"row_count": 42,
					"columns": []map[string]any{
						{"name": "ПЗД", "sample_value": "000123"},
						{"name": "Наработка", "sample_value": 356},
						{"name": "Примечание", "sample_value": ""},
					},
				},
				{
					"name":      "Ремонты 2024",
					"row_count": 0,
					"columns":   []map[string]any{{"name": "Код", "sample_value": nil}},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewConverterClient(srv.URL, 5*time.Second)
	f, err := c.Convert(context.Background(), "base.mdb", strings.NewReader("MDBDATA"))
	if err != nil {
		t.Fatalf("Convert() failed: %v", err)
	}

	if !f.FromDatabase || f.Name != "base.mdb" || len(f.Sheets) != 2 {
		t.Fatalf("file = %+v", f)
	}
	s := f.Sheets[0]
	if !s.Selected || !s.FromDatabase || s.RowCount != 42 || s.Index != 0 {
		t.Errorf("sheet = %+v", s)
	}
	if s.Descriptions["ПЗД"] != "Пример: 000123" || s.Descriptions["Наработка"] != "Пример: 356" || s.Descriptions["Примечание"] != "Примечание" {
		t.Errorf("descriptions = %v", s.Descriptions)
	}
	if !f.Sheets[1].Selected || f.Sheets[1].Descriptions["Код"] != "Код" {
		t.Errorf("second table = %+v", f.Sheets[1])
	}
}

// TestConverterClient_Errors covers service failures; none are retried
func TestConverterClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"success false", http.StatusOK, `{"success": false, "error": "В MDB файле не найдено таблиц"}`, "не найдено таблиц"},
		{"success false without message", http.StatusOK, `{"success": false}`, "неизвестная ошибка"},
		{"server error with body", http.StatusInternalServerError, `{"success": false, "error": "mdb-tools не установлен"}`, "500"},
		{"server error without body", http.StatusBadGateway, `<html>`, "502"},
		{"malformed", http.StatusOK, `{"success":`, "invalid conversion response"},
		{"no tables", http.StatusOK, `{"success": true, "tables": []}`, "не найдено таблиц"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewConverterClient(srv.URL, time.Second).Convert(context.Background(), "x.mdb", strings.NewReader("x"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Convert() error = %v, want it to contain %q", err, tt.want)
			}
			if calls != 1 {
				t.Errorf("service called %d times, want 1", calls)
			}
		})
	}
}

// TestConverterClient_Unavailable verifies transport errors surface
func TestConverterClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewConverterClient(url, time.Second).Convert(context.Background(), "x.mdb", strings.NewReader("x")); err == nil {
		t.Error("Convert() should fail when the service is down")
	}
}
