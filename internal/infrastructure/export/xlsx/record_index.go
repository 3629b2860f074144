// Package xlsx renders a package's table of contents, record sections and
// rule violations as a workbook for the filing clerk.
package xlsx

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

const (
	SheetIndex      = "Index"
	SheetSections   = "Sections"
	SheetViolations = "Violations"
)

type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) Export(pkg *domain.Package) ([]byte, error) {
	if pkg == nil {
		return nil, fmt.Errorf("export record index: package is nil")
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetIndex); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetSections, SheetViolations} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	w := sheetWriter{f: f, header: header}
	w.table(SheetIndex, []any{"#", "Document", "Type", "Start page", "End page", "Pages"}, indexRows(pkg.Plan))
	w.table(SheetSections, []any{"Section", "Title", "Section status", "Document type", "Rule", "Severity", "Slot status", "Files"}, sectionRows(pkg.RecordSections))
	w.table(SheetViolations, []any{"Code", "Severity", "Rule", "Document type", "Message", "Remediation", "Source"}, violationRows(pkg.RuleViolations))
	if w.err != nil {
		return nil, w.err
	}

	_ = f.SetColWidth(SheetIndex, "B", "B", 40)
	_ = f.SetColWidth(SheetIndex, "C", "C", 32)
	_ = f.SetColWidth(SheetSections, "B", "B", 32)
	_ = f.SetColWidth(SheetSections, "D", "E", 28)
	_ = f.SetColWidth(SheetViolations, "A", "C", 28)
	_ = f.SetColWidth(SheetViolations, "E", "G", 48)
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Debug("record index exported",
		"matter_id", pkg.MatterID,
		"entries", len(pkg.Plan.TableOfContents),
		"violations", len(pkg.RuleViolations),
	)
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) table(sheet string, header []any, rows [][]any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		w.err = fmt.Errorf("write %s header: %w", sheet, err)
		return
	}
	if err := w.f.SetRowStyle(sheet, 1, 1, w.header); err != nil {
		w.err = fmt.Errorf("style %s header: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			w.err = fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
			return
		}
	}
}

func indexRows(plan domain.AssemblyPlan) [][]any {
	rows := make([][]any, 0, len(plan.TableOfContents))
	for _, e := range plan.TableOfContents {
		rows = append(rows, []any{e.Position, e.Filename, typeLabel(e.DocumentType), e.StartPage, e.EndPage, e.PageCount})
	}
	return rows
}

func sectionRows(sections []domain.RecordSection) [][]any {
	var rows [][]any
	for _, s := range sections {
		if len(s.Slots) == 0 {
			rows = append(rows, []any{s.SectionID, s.Title, string(s.Status), "", "", "", "", ""})
			continue
		}
		for _, slot := range s.Slots {
			rows = append(rows, []any{
				s.SectionID, s.Title, string(s.Status),
				typeLabel(slot.DocumentType), slot.RuleID, string(slot.Severity), string(slot.Status),
				strings.Join(slot.FileIDs, ", "),
			})
		}
	}
	return rows
}

func violationRows(violations []domain.Violation) [][]any {
	rows := make([][]any, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, []any{v.Code, string(v.Severity), v.RuleID, typeLabel(v.DocumentType), v.Message, v.Remediation, v.SourceURL})
	}
	return rows
}

func typeLabel(t domain.DocumentType) string {
	return t.Label()
}
