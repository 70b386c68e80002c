// Package export produces reviewer-side XLSX bookkeeping: one sheet of job
// history, one sheet of logged corrections.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/repository"
)

// Service is a tiny façade over the job repository and correction log that
// produces XLSX bytes for exports.
type Service struct {
	jobs        *repository.JobsRepo
	corrections *corrections.Log
	logger      *slog.Logger
}

func NewService(jobs *repository.JobsRepo, log *corrections.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, corrections: log, logger: logger}
}

// ExportXLSX returns a workbook with the most recent jobLimit extraction jobs
// and the full correction history.
func (s *Service) ExportXLSX(ctx context.Context, jobLimit int) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListRecent(ctx, jobLimit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	entries := s.corrections.Entries()

	f := excelize.NewFile()

	if err := s.writeJobsSheet(f, jobs); err != nil {
		return nil, err
	}
	if err := s.writeCorrectionsSheet(f, entries); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobs),
		"corrections", len(entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeJobsSheet(f *excelize.File, jobs []repository.Job) error {
	const sheet = "Extractions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"Started", "Finished", "Status", "Failed Stage", "Error", "Source Path", "Extracted JSON"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, j.StartedAt.UTC().Format(time.RFC3339))
		if j.FinishedAt != nil {
			write(2, j.FinishedAt.UTC().Format(time.RFC3339))
		}
		write(3, string(j.Status))
		write(4, j.FailedStage)
		write(5, truncate(j.ErrorMessage, 140))
		write(6, j.SourcePath)
		write(7, truncate(j.ExtractedJSON, 200))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 22)
	_ = f.SetColWidth(sheet, "C", "D", 14)
	_ = f.SetColWidth(sheet, "E", "E", 48)
	_ = f.SetColWidth(sheet, "F", "G", 60)
	return nil
}

func (s *Service) writeCorrectionsSheet(f *excelize.File, entries []corrections.Entry) error {
	const sheet = "Corrections"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Image Hash", "Date", "Contact", "Description", "Document Type", "Document Subtype", "Category", "Subcategory"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range entries {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		d := e.CorrectedData
		write(1, e.OriginalImageHash)
		write(2, d.Date)
		write(3, d.Contact)
		write(4, truncate(d.Description, 140))
		write(5, d.DocumentType)
		write(6, d.DocumentSubtype)
		write(7, d.Category)
		write(8, d.Subcategory)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 36)
	_ = f.SetColWidth(sheet, "B", "B", 12)
	_ = f.SetColWidth(sheet, "C", "D", 32)
	_ = f.SetColWidth(sheet, "E", "H", 20)
	return nil
}

// truncate caps s at roughly n bytes, cutting on a rune boundary so the cell
// stays valid UTF-8.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
