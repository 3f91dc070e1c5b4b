// Package xlsx implements layout.Surface on top of an excelize workbook.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ByLCY/imgsheet/imaging"
	"github.com/ByLCY/imgsheet/layout"
)

const (
	borderColor = "000000"
	borderThick = 5 // excelize border style index for "thick"
)

// Surface writes layout output into a single worksheet.
type Surface struct {
	file   *excelize.File
	sheet  string
	styles map[layout.BorderStyle]int
}

var _ layout.Surface = (*Surface)(nil)

// New creates a workbook with one worksheet. An empty sheetName keeps the
// default name of the first sheet.
func New(sheetName string) (*Surface, error) {
	f := excelize.NewFile()
	name := f.GetSheetName(0)
	if sheetName != "" && sheetName != name {
		if err := f.SetSheetName(name, sheetName); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("rename sheet %q: %w", sheetName, err)
		}
		name = sheetName
	}
	return &Surface{
		file:   f,
		sheet:  name,
		styles: map[layout.BorderStyle]int{},
	}, nil
}

// SheetName returns the name of the worksheet being written.
func (s *Surface) SheetName() string { return s.sheet }

// File exposes the underlying workbook.
func (s *Surface) File() *excelize.File { return s.file }

func (s *Surface) SetText(row, col int, text string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return s.file.SetCellValue(s.sheet, cell, text)
}

func (s *Surface) SetBorder(row, col int, style layout.BorderStyle) error {
	id, err := s.styleID(style)
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return s.file.SetCellStyle(s.sheet, cell, cell, id)
}

// SetColWidth clamps width to the range accepted by the xlsx format.
func (s *Surface) SetColWidth(col int, width float64) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	width = min(max(width, 0), excelize.MaxColumnWidth)
	return s.file.SetColWidth(s.sheet, name, name, width)
}

// SetRowHeight clamps height to the range accepted by the xlsx format.
func (s *Surface) SetRowHeight(row int, height float64) error {
	height = min(max(height, 0), excelize.MaxRowHeight)
	return s.file.SetRowHeight(s.sheet, row, height)
}

// EmbedImage stores the resized image as PNG anchored at (row, col).
func (s *Surface) EmbedImage(row, col int, block layout.ImageBlock) error {
	data, err := imaging.EncodePNG(block.Image)
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return s.file.AddPictureFromBytes(s.sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      data,
		Format: &excelize.GraphicOptions{
			AltText:     block.Name,
			Positioning: "oneCell",
		},
	})
}

// Save writes the workbook to path.
func (s *Surface) Save(path string) error {
	if err := s.file.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteTo streams the workbook to w.
func (s *Surface) WriteTo(w io.Writer) (int64, error) { return s.file.WriteTo(w) }

// Close releases temporary resources held by the workbook.
func (s *Surface) Close() error { return s.file.Close() }

func (s *Surface) styleID(style layout.BorderStyle) (int, error) {
	if id, ok := s.styles[style]; ok {
		return id, nil
	}
	var borders []excelize.Border
	switch style {
	case layout.BorderTop:
		borders = []excelize.Border{{Type: "top", Color: borderColor, Style: borderThick}}
	case layout.BorderRight:
		borders = []excelize.Border{{Type: "right", Color: borderColor, Style: borderThick}}
	case layout.BorderRightTop:
		borders = []excelize.Border{
			{Type: "right", Color: borderColor, Style: borderThick},
			{Type: "top", Color: borderColor, Style: borderThick},
		}
	}
	id, err := s.file.NewStyle(&excelize.Style{Border: borders})
	if err != nil {
		return 0, fmt.Errorf("create %s border style: %w", style, err)
	}
	s.styles[style] = id
	return id, nil
}
