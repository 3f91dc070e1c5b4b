package layout

import "errors"

// Cell 是记录下来的单元格内容。
type Cell struct {
	Row    int         `json:"row"`
	Col    int         `json:"col"`
	Text   string      `json:"text,omitempty"`
	Border BorderStyle `json:"border,omitempty"`
}

// Sheet 是一个内存中的 Surface，记录引擎的全部写入，用于调试输出、预览渲染与测试。
type Sheet struct {
	Cells      map[string]*Cell `json:"cells"`
	ColWidths  map[int]float64  `json:"colWidths"`
	RowHeights map[int]float64  `json:"rowHeights"`
	Images     []ImageBlock     `json:"images"`
}

var _ Surface = (*Sheet)(nil)

// NewSheet 创建空白的记录表。
func NewSheet() *Sheet {
	return &Sheet{
		Cells:      map[string]*Cell{},
		ColWidths:  map[int]float64{},
		RowHeights: map[int]float64{},
	}
}

var errBadCoord = errors.New("行列必须从 1 开始")

func (s *Sheet) cell(row, col int) *Cell {
	ref := CellName(row, col)
	c, ok := s.Cells[ref]
	if !ok {
		c = &Cell{Row: row, Col: col}
		s.Cells[ref] = c
	}
	return c
}

// Cell 返回 (row, col) 处记录的单元格，不存在时返回 nil。
func (s *Sheet) Cell(row, col int) *Cell {
	return s.Cells[CellName(row, col)]
}

func (s *Sheet) SetText(row, col int, text string) error {
	if row < 1 || col < 1 {
		return errBadCoord
	}
	s.cell(row, col).Text = text
	return nil
}

func (s *Sheet) SetBorder(row, col int, style BorderStyle) error {
	if row < 1 || col < 1 {
		return errBadCoord
	}
	s.cell(row, col).Border = style
	return nil
}

func (s *Sheet) SetColWidth(col int, width float64) error {
	if col < 1 {
		return errBadCoord
	}
	s.ColWidths[col] = width
	return nil
}

func (s *Sheet) SetRowHeight(row int, height float64) error {
	if row < 1 {
		return errBadCoord
	}
	s.RowHeights[row] = height
	return nil
}

func (s *Sheet) EmbedImage(row, col int, block ImageBlock) error {
	if row < 1 || col < 1 {
		return errBadCoord
	}
	block.Row, block.Col = row, col
	s.Images = append(s.Images, block)
	return nil
}

// Extent 返回被写入过的最大行号与列号（包含图片锚点）。
func (s *Sheet) Extent() (rows, cols int) {
	for _, c := range s.Cells {
		rows = max(rows, c.Row)
		cols = max(cols, c.Col)
	}
	for _, img := range s.Images {
		rows = max(rows, img.Row)
		cols = max(cols, img.Col)
	}
	return rows, cols
}

// Tee 返回一个把每次写入依次转发给所有 surfaces 的 Surface，遇到第一个错误即返回。
func Tee(surfaces ...Surface) Surface {
	list := make([]Surface, 0, len(surfaces))
	for _, s := range surfaces {
		if s != nil {
			list = append(list, s)
		}
	}
	return teeSurface(list)
}

type teeSurface []Surface

func (t teeSurface) each(fn func(Surface) error) error {
	for _, s := range t {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSurface) SetText(row, col int, text string) error {
	return t.each(func(s Surface) error { return s.SetText(row, col, text) })
}

func (t teeSurface) SetBorder(row, col int, style BorderStyle) error {
	return t.each(func(s Surface) error { return s.SetBorder(row, col, style) })
}

func (t teeSurface) SetColWidth(col int, width float64) error {
	return t.each(func(s Surface) error { return s.SetColWidth(col, width) })
}

func (t teeSurface) SetRowHeight(row int, height float64) error {
	return t.each(func(s Surface) error { return s.SetRowHeight(row, height) })
}

func (t teeSurface) EmbedImage(row, col int, block ImageBlock) error {
	return t.each(func(s Surface) error { return s.EmbedImage(row, col, block) })
}
