// Package ingest turns uploaded spreadsheets and database exports into
// catalog files: one sheet per worksheet or table, with field names taken
// from the header row and a sample value per field.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/internal/logger"
)

// File kinds by extension
const (
	KindSpreadsheet = "spreadsheet"
	KindDatabase    = "database"
)

const (
	maxSampleLength = 40
	sampleCut       = 37
)

var (
	// ErrUnsupportedFormat is returned for extensions the service cannot read
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrConverterDisabled is returned for database files when no conversion
	// service is configured
	ErrConverterDisabled = errors.New("database conversion service is not configured")
)

// Converter turns a database file into its table structure
type Converter interface {
	Convert(ctx context.Context, filename string, r io.Reader) (*catalog.File, error)
}

// Upload is one file of a multi-file request
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Result is the outcome of parsing one upload
type Result struct {
	Name string
	Kind string
	File *catalog.File
	Err  error
}

// Kind classifies a file name by extension
func Kind(filename string) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return KindSpreadsheet, nil
	case ".mdb", ".accdb":
		return KindDatabase, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// Describe renders the description of a field from its sample value
func Describe(field, sample string) string {
	sample = strings.TrimSpace(sample)
	if sample == "" || sample == field {
		return field
	}
	if utf8.RuneCountInString(sample) > maxSampleLength {
		sample = string([]rune(sample)[:sampleCut]) + "..."
	}
	return "Пример: " + sample
}

// Parser reads uploads of either kind
type Parser struct {
	converter Converter
}

// NewParser creates a parser. A nil converter disables database files.
func NewParser(converter Converter) *Parser {
	return &Parser{converter: converter}
}

// Parse reads one file. The returned file carries no ID or aliases; those
// are assigned when it is added to a set.
func (p *Parser) Parse(ctx context.Context, filename string, r io.Reader) (*catalog.File, error) {
	kind, err := Kind(filename)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindDatabase:
		if p.converter == nil {
			return nil, ErrConverterDisabled
		}
		return p.converter.Convert(ctx, filename, r)
	default:
		return ReadWorkbook(filename, r)
	}
}

// ParseAll parses uploads concurrently. Results are returned in completion
// order; a failed upload yields a result with Err set.
func (p *Parser) ParseAll(ctx context.Context, uploads []Upload) []Result {
	out := make(chan Result, len(uploads))

	var wg sync.WaitGroup
	for _, u := range uploads {
		wg.Add(1)
		go func(u Upload) {
			defer wg.Done()
			out <- p.parseUpload(ctx, u)
		}(u)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]Result, 0, len(uploads))
	for res := range out {
		results = append(results, res)
	}
	return results
}

func (p *Parser) parseUpload(ctx context.Context, u Upload) Result {
	res := Result{Name: u.Name}
	res.Kind, _ = Kind(u.Name)

	rc, err := u.Open()
	if err != nil {
		res.Err = fmt.Errorf("failed to open upload: %w", err)
		return res
	}
	defer rc.Close()

	res.File, res.Err = p.Parse(ctx, u.Name, rc)
	if res.Err != nil {
		logger.Warn("upload rejected", "file", u.Name, "error", res.Err)
	} else {
		logger.Debug("upload parsed", "file", u.Name, "sheets", len(res.File.Sheets), "fields", res.File.TotalFields())
	}
	return res
}
