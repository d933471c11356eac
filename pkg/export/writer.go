package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Форматы выгрузки
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Writer receives the header and then one row per record.
type Writer interface {
	WriteHeader(columns []string) error
	WriteRow(values []any) error
	Close() error
}

// NewWriter creates a writer for format on w. sheet names the XLSX sheet.
func NewWriter(format string, w io.Writer, sheet string) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatXLSX:
		return NewXLSXWriter(w, sheet)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if strings.EqualFold(format, FormatXLSX) {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// CSVWriter пишет записи в CSV
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter создает CSV writer
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) WriteHeader(columns []string) error {
	return c.w.Write(columns)
}

func (c *CSVWriter) WriteRow(values []any) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = formatCSV(v)
	}
	return c.w.Write(row)
}

func (c *CSVWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

func formatCSV(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case time.Time:
		return tv.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case []byte:
		return string(tv)
	default:
		return fmt.Sprint(tv)
	}
}

// XLSXWriter пишет записи в лист Excel потоково
type XLSXWriter struct {
	out       io.Writer
	file      *excelize.File
	stream    *excelize.StreamWriter
	dateStyle int
	row       int
}

// NewXLSXWriter создает XLSX writer. Файл записывается в w при Close.
func NewXLSXWriter(w io.Writer, sheet string) (*XLSXWriter, error) {
	f := excelize.NewFile()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to rename sheet: %w", err)
		}
	}

	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	// 22 - встроенный формат "m/d/yy h:mm"
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}

	return &XLSXWriter{out: w, file: f, stream: stream, dateStyle: dateStyle}, nil
}

func (x *XLSXWriter) WriteHeader(columns []string) error {
	headerStyle, err := x.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if len(columns) > 0 {
		if err := x.stream.SetColWidth(1, len(columns), 15); err != nil {
			return err
		}
	}

	cells := make([]any, len(columns))
	for i, c := range columns {
		cells[i] = excelize.Cell{StyleID: headerStyle, Value: c}
	}
	return x.writeCells(cells)
}

func (x *XLSXWriter) WriteRow(values []any) error {
	cells := make([]any, len(values))
	for i, v := range values {
		switch tv := v.(type) {
		case nil:
			cells[i] = ""
		case time.Time:
			cells[i] = excelize.Cell{StyleID: x.dateStyle, Value: tv}
		default:
			cells[i] = tv
		}
	}
	return x.writeCells(cells)
}

func (x *XLSXWriter) writeCells(cells []any) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.stream.SetRow(cell, cells)
}

// Close завершает лист и записывает файл
func (x *XLSXWriter) Close() error {
	defer x.file.Close()
	if err := x.stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := x.file.Write(x.out); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
