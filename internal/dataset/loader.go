package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Loader reads tables from local files or HTTP(S) URLs.
type Loader struct {
	rest *resty.Client
}

// NewLoader creates a loader whose remote fetches time out after timeout.
func NewLoader(timeout time.Duration) *Loader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	return &Loader{rest: r}
}

// Load reads the dataset at path. The format is chosen from the scheme and
// extension: URLs are fetched and parsed as CSV unless they end in .xlsx,
// .xlsx files are read from their first sheet, anything else is CSV.
func (l *Loader) Load(ctx context.Context, path string) (*Table, error) {
	start := time.Now()

	var (
		t   *Table
		err error
	)
	switch {
	case isURL(path):
		t, err = l.loadURL(ctx, path)
	case isXLSX(path):
		t, err = loadXLSXFile(path)
	default:
		t, err = loadCSVFile(path)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", path).
		Int("rows", t.Len()).
		Int("columns", len(t.Header)).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset loaded")
	return t, nil
}

func (l *Loader) loadURL(ctx context.Context, url string) (*Table, error) {
	resp, err := l.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status())
	}

	if isXLSX(url) {
		f, err := excelize.OpenReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f)
	}
	return ReadCSV(bytes.NewReader(resp.Body()))
}

func loadCSVFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty CSV: no header")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, record)
	}

	return NewTable(header, rows)
}

func loadXLSXFile(path string) (*Table, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

// readWorkbook reads the first sheet; the first row is the header.
func readWorkbook(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	header := rows[0]
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		// GetRows drops trailing empty cells
		for len(row) < len(header) {
			row = append(row, "")
		}
		data = append(data, row)
	}

	return NewTable(header, data)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func isXLSX(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 && isURL(path) {
		path = path[:i]
	}
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
