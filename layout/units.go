package layout

import (
	"math"
	"strconv"
)

// This file holds the pixel <-> worksheet unit conversions and the small
// geometry helpers the engine relies on.

// 工作表默认单元格尺寸（像素）。只有与默认值不同时才会改写列宽/行高。
const (
	DefaultCellWidthPx  = 88
	DefaultCellHeightPx = 18
)

// Conversion factors between pixels and the spreadsheet's native units.
// These are the legacy approximations used by common xlsx writers, not exact.
const (
	WidthPxPerUnit  = 8.0 // column width: character units
	HeightPxPerUnit = 1.3 // row height: approx. points
)

// PxToWidthUnits converts a pixel width to column width units.
func PxToWidthUnits(px float64) float64 { return px / WidthPxPerUnit }

// PxToHeightUnits converts a pixel height to row height units.
func PxToHeightUnits(px float64) float64 { return px / HeightPxPerUnit }

// WidthUnitsToPx is the inverse of PxToWidthUnits.
func WidthUnitsToPx(units float64) float64 { return units * WidthPxPerUnit }

// HeightUnitsToPx is the inverse of PxToHeightUnits.
func HeightUnitsToPx(units float64) float64 { return units * HeightPxPerUnit }

// Size 是以像素为单位的图片尺寸。
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FitWidth 返回把 srcW×srcH 的图片缩放到指定宽度后的尺寸（保持宽高比，高度四舍五入，至少 1px）。
func FitWidth(srcW, srcH, width int) Size {
	if srcW <= 0 || srcH <= 0 || width <= 0 {
		return Size{Width: max(width, 0), Height: 1}
	}
	h := int(math.Round(float64(width) * float64(srcH) / float64(srcW)))
	if h < 1 {
		h = 1
	}
	return Size{Width: width, Height: h}
}

// RowSpan 返回高度为 heightPx 的图片占用的行数：ceil(heightPx / cellHeightPx)。
func RowSpan(heightPx, cellHeightPx int) int {
	if heightPx <= 0 || cellHeightPx <= 0 {
		return 0
	}
	return (heightPx + cellHeightPx - 1) / cellHeightPx
}

// ColumnName converts a 1-based column index to its letter form (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// CellName returns the A1-style reference of (row, col).
func CellName(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}
