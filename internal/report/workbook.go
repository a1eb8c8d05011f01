package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Column is one table column.
type Column struct {
	Header string
	Width  float64
}

// Table is a titled block of rows inside a section.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]any
}

// Section is one sheet of the workbook.
type Section struct {
	Name   string
	Title  string
	Tables []Table
}

// Workbook accumulates sections and persists them.
type Workbook interface {
	AddSection(s Section) error
	// Save writes the workbook into dir and returns the file path.
	Save(dir string) (string, error)
}

// Sink creates workbooks.
type Sink interface {
	NewWorkbook() Workbook
}

// XLSXSink writes Excel workbooks.
type XLSXSink struct {
	now func() time.Time
}

// NewXLSXSink creates a sink that names files after the current time.
func NewXLSXSink() *XLSXSink {
	return &XLSXSink{now: time.Now}
}

// NewWorkbook starts an empty workbook.
func (s *XLSXSink) NewWorkbook() Workbook {
	return &xlsxWorkbook{file: excelize.NewFile(), now: s.now}
}

// FileName returns the workbook file name for a timestamp.
func FileName(t time.Time) string {
	return "billspectre_report_" + t.Format("20060102_150405") + ".xlsx"
}

const (
	defaultColumnWidth = 15.0
	headerFill         = "366092"
	maxSheetName       = 31
)

type xlsxWorkbook struct {
	file     *excelize.File
	now      func() time.Time
	sections int
	styles   *workbookStyles
}

type workbookStyles struct {
	title, tableTitle, header int
}

func (w *xlsxWorkbook) ensureStyles() error {
	if w.styles != nil {
		return nil
	}
	title, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("create title style: %w", err)
	}
	tableTitle, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	if err != nil {
		return fmt.Errorf("create table title style: %w", err)
	}
	header, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	w.styles = &workbookStyles{title: title, tableTitle: tableTitle, header: header}
	return nil
}

// AddSection writes the section to a new sheet: a title row, then each table
// as an optional title, a styled header row and its data rows, separated by
// a blank row.
func (w *xlsxWorkbook) AddSection(s Section) error {
	if err := w.ensureStyles(); err != nil {
		return err
	}
	sheet := sheetName(s.Name)
	if w.sections == 0 {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), sheet); err != nil {
			return fmt.Errorf("rename sheet %s: %w", sheet, err)
		}
	} else if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	w.sections++

	row := 1
	if s.Title != "" {
		if err := w.setStyled(sheet, 1, row, s.Title, w.styles.title); err != nil {
			return err
		}
		row += 2
	}

	widths := map[int]float64{}
	for _, t := range s.Tables {
		if t.Title != "" {
			if err := w.setStyled(sheet, 1, row, t.Title, w.styles.tableTitle); err != nil {
				return err
			}
			row++
		}
		for i, c := range t.Columns {
			if err := w.setStyled(sheet, i+1, row, c.Header, w.styles.header); err != nil {
				return err
			}
			width := c.Width
			if width == 0 {
				width = defaultColumnWidth
			}
			widths[i+1] = max(widths[i+1], width)
		}
		row++
		for _, values := range t.Rows {
			for i, v := range values {
				cell, err := excelize.CoordinatesToCellName(i+1, row)
				if err != nil {
					return err
				}
				if err := w.file.SetCellValue(sheet, cell, cellValue(v)); err != nil {
					return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
				}
			}
			row++
		}
		row++
	}

	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("set column width on %s: %w", sheet, err)
		}
	}
	return nil
}

func (w *xlsxWorkbook) setStyled(sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := w.file.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return w.file.SetCellStyle(sheet, cell, cell, style)
}

// Save writes the workbook as billspectre_report_YYYYMMDD_HHMMSS.xlsx.
func (w *xlsxWorkbook) Save(dir string) (string, error) {
	defer w.file.Close()

	if w.sections == 0 {
		return "", fmt.Errorf("save workbook: no sections")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	w.file.SetActiveSheet(0)
	path := filepath.Join(dir, FileName(w.now()))
	if err := w.file.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// cellValue converts values excelize does not know natively.
func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.Round(2).InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return ""
		}
		return x.Round(2).InexactFloat64()
	case nil:
		return ""
	}
	return v
}

// sheetName strips characters Excel rejects and truncates to its limit.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, name)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if name == "" {
		name = "Sheet"
	}
	return name
}
