package storage

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/wikicat/internal/types"
)

// XLSXSheet is the worksheet records are written to.
const XLSXSheet = "pages"

// XLSXStorage writes records to a single-sheet spreadsheet on Close. Views
// and page ids are written as numbers so they sort in a spreadsheet.
type XLSXStorage struct {
	path    string
	columns []string
	records []*types.PageRecord
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewXLSXStorage creates a new spreadsheet storage.
func NewXLSXStorage(outputPath string, extra []string, logger *slog.Logger) (*XLSXStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &XLSXStorage{
		path:    outputPath,
		columns: Columns(extra),
		logger:  logger.With("component", "xlsx_storage"),
	}, nil
}

func (s *XLSXStorage) Name() string { return "xlsx" }

func (s *XLSXStorage) Store(records []*types.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *XLSXStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(s.columns))
	for i, c := range s.columns {
		header[i] = c
	}
	if err := f.SetSheetRow(XLSXSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range s.records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := s.row(r)
		if err := f.SetSheetRow(XLSXSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save spreadsheet: %w", err)
	}
	s.logger.Info("XLSX written", "path", s.path, "records", len(s.records))
	return nil
}

func (s *XLSXStorage) row(r *types.PageRecord) []any {
	text := Row(r, s.columns)
	row := make([]any, len(s.columns))
	for i, c := range s.columns {
		switch {
		case c == "pageid":
			row[i] = r.PageID
		case c == "namespace":
			row[i] = r.Namespace
		case c == "views" && r.Views != nil && !math.IsNaN(*r.Views):
			row[i] = *r.Views
		default:
			row[i] = text[i]
		}
	}
	return row
}
