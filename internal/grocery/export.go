package grocery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is a download format for the grocery list.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat maps a user supplied name ("txt", "markdown", "xlsx", ...) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

const (
	listSheet = "Grocery List"
	menuSheet = "Menu"
)

// Render returns the list encoded in the given format.
func (l *List) Render(format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return []byte(l.Text()), nil
	case FormatMarkdown:
		return []byte(l.Markdown()), nil
	case FormatXLSX:
		return l.XLSX()
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// Export writes the list into dir and returns the path of the written file.
func (l *List) Export(dir string, format Format) (string, error) {
	data, err := l.Render(format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, l.FileName(string(format)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write grocery list: %w", err)
	}
	return path, nil
}

// XLSX builds a workbook with one row per item and a sheet listing the menu.
func (l *List) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", listSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(listSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	row := 1
	writeRow := func(values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, values)
	}

	if err := writeRow("Department", "Item", "Quantity", "Recipes"); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, dept := range l.DepartmentNames() {
		for _, item := range l.Departments[dept] {
			if err := writeRow(DepartmentLabel(dept), item.Name, item.Quantity, strings.Join(item.Recipes, ", ")); err != nil {
				return nil, fmt.Errorf("failed to write item row: %w", err)
			}
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush grocery sheet: %w", err)
	}

	if _, err := f.NewSheet(menuSheet); err != nil {
		return nil, fmt.Errorf("failed to add menu sheet: %w", err)
	}
	menu := [][]interface{}{{"Recipe", "Protein", "Cuisine", "Prep Time"}}
	for _, r := range l.Recipes {
		menu = append(menu, []interface{}{r.Name, r.Protein, r.Cuisine, r.PrepTime})
	}
	for i, values := range menu {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(menuSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write menu row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
