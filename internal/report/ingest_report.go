// Package report renders loader run summaries as PDF or XLSX.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"geotourist/internal/points/domain"
)

// BuildIngestPDF renders a minimal PDF for a loader run.
func BuildIngestPDF(summary domain.IngestSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Ingest Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range summaryLines(summary) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", line.label, line.value))
		pdf.Ln(5)
	}

	if reasons := rejectReasons(summary); len(reasons) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Rejected lines")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		for _, reason := range reasons {
			pdf.Cell(0, 6, fmt.Sprintf("%s: %d", reason, summary.Rejected[reason]))
			pdf.Ln(5)
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Batch", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Rows", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Elapsed (s)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Result", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, batch := range summary.Batches {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", batch.Index), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", batch.Rows), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", batch.Elapsed.Seconds()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, batchResult(batch), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildIngestXLSX renders a workbook with summary, rejects and batches sheets.
func BuildIngestXLSX(summary domain.IngestSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	rejectsSheet := "rejects"
	batchesSheet := "batches"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rejectsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(batchesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Ingest Run Report")
	for i, line := range summaryLines(summary) {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), line.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), line.value)
	}

	_ = f.SetCellValue(rejectsSheet, "A1", "Reason")
	_ = f.SetCellValue(rejectsSheet, "B1", "Lines")
	for i, reason := range rejectReasons(summary) {
		row := i + 2
		_ = f.SetCellValue(rejectsSheet, fmt.Sprintf("A%d", row), reason)
		_ = f.SetCellValue(rejectsSheet, fmt.Sprintf("B%d", row), summary.Rejected[reason])
	}

	_ = f.SetCellValue(batchesSheet, "A1", "Batch")
	_ = f.SetCellValue(batchesSheet, "B1", "Rows")
	_ = f.SetCellValue(batchesSheet, "C1", "Elapsed (s)")
	_ = f.SetCellValue(batchesSheet, "D1", "Result")
	_ = f.SetCellValue(batchesSheet, "E1", "Error")
	for i, batch := range summary.Batches {
		row := i + 2
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("A%d", row), batch.Index)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("B%d", row), batch.Rows)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("C%d", row), batch.Elapsed.Seconds())
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("D%d", row), batchResult(batch))
		if batch.Err != nil {
			_ = f.SetCellValue(batchesSheet, fmt.Sprintf("E%d", row), batch.Err.Error())
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders summary in the format implied by path (.pdf or .xlsx).
func WriteFile(path string, summary domain.IngestSummary) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		data, err = BuildIngestPDF(summary)
	case ".xlsx":
		data, err = BuildIngestXLSX(summary)
	default:
		return fmt.Errorf("report: unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type summaryLine struct {
	label string
	value any
}

func summaryLines(s domain.IngestSummary) []summaryLine {
	return []summaryLine{
		{"Run", s.RunID},
		{"Source", s.Source},
		{"Started", s.StartedAt.Format(time.RFC3339)},
		{"Finished", s.FinishedAt.Format(time.RFC3339)},
		{"Elapsed (s)", fmt.Sprintf("%.2f", s.FinishedAt.Sub(s.StartedAt).Seconds())},
		{"Lines read", s.Lines},
		{"Rows parsed", s.Parsed},
		{"Sentinel lines", s.Sentinels},
		{"Rows rejected", s.RejectedTotal()},
		{"Rows written", s.RowsWritten},
		{"Rows skipped (duplicates)", s.RowsSkipped},
		{"Rows failed", s.RowsFailed},
	}
}

func rejectReasons(s domain.IngestSummary) []string {
	reasons := make([]string, 0, len(s.Rejected))
	for reason := range s.Rejected {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

func batchResult(b domain.BatchReport) string {
	switch {
	case b.Err != nil:
		return "failed"
	case b.Skipped:
		return "skipped"
	default:
		return "committed"
	}
}
