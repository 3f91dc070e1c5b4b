package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/imgsheet/fonts"
	"github.com/ByLCY/imgsheet/layout"
	"github.com/ByLCY/imgsheet/renderer"
)

const (
	pxToMm      = 25.4 / 96 // CSS pixel at 96 DPI
	pageMargin  = 5.0       // mm
	borderWidth = 0.5       // mm, thick border
	gridWidth   = 0.05      // mm, faint cell grid
	textPadding = 0.6       // mm
)

var (
	textColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	gridColor = color.RGBA{R: 220, G: 220, B: 220, A: 255}
)

// Renderer draws a recorded sheet as a single-page PDF preview via github.com/tdewolff/canvas.
type Renderer struct {
	cellWidthPx  float64
	cellHeightPx float64
	fontSize     float64 // pt
	fontName     string

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the preview renderer. Zero values fall back to the
// default worksheet cell size and a 9pt regular font.
type Options struct {
	CellWidthPx  int
	CellHeightPx int
	FontSize     float64
	Font         string
}

// NewRenderer creates a preview renderer.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{
		cellWidthPx:  float64(opts.CellWidthPx),
		cellHeightPx: float64(opts.CellHeightPx),
		fontSize:     opts.FontSize,
		fontName:     opts.Font,
	}
	if r.cellWidthPx <= 0 {
		r.cellWidthPx = layout.DefaultCellWidthPx
	}
	if r.cellHeightPx <= 0 {
		r.cellHeightPx = layout.DefaultCellHeightPx
	}
	if r.fontSize <= 0 {
		r.fontSize = 9
	}
	if r.fontName == "" {
		r.fontName = fonts.Default
	}
	return r
}

// Render renders the sheet into a PDF byte slice.
func (r *Renderer) Render(sheet *layout.Sheet) ([]byte, error) {
	if sheet == nil {
		return nil, fmt.Errorf("渲染的工作表为空")
	}
	g := r.newGrid(sheet)
	width, height := g.pageSize(sheet)

	var buf bytes.Buffer
	writer := pdf.New(&buf, width, height, nil)
	writer.SetInfo("imgsheet preview", "", "", "", "imgsheet")

	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 左上角为原点，与工作表行列方向一致

	r.drawGrid(ctx, g)
	if err := r.drawTexts(ctx, g, sheet); err != nil {
		return nil, err
	}
	r.drawBorders(ctx, g, sheet)
	r.drawImages(ctx, g, sheet.Images)

	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// grid holds the page coordinates (mm) of every column's left edge and every
// row's top edge. Index 0 is unused; index n+1 is the right/bottom edge of n.
type grid struct {
	colX []float64
	rowY []float64
}

func (r *Renderer) newGrid(sheet *layout.Sheet) grid {
	rows, cols := sheet.Extent()
	g := grid{
		colX: make([]float64, cols+2),
		rowY: make([]float64, rows+2),
	}
	x := pageMargin
	for col := 1; col <= cols+1; col++ {
		g.colX[col] = x
		x += r.colWidthMM(sheet, col)
	}
	y := pageMargin
	for row := 1; row <= rows+1; row++ {
		g.rowY[row] = y
		y += r.rowHeightMM(sheet, row)
	}
	return g
}

func (r *Renderer) colWidthMM(sheet *layout.Sheet, col int) float64 {
	if w, ok := sheet.ColWidths[col]; ok {
		return layout.WidthUnitsToPx(w) * pxToMm
	}
	return r.cellWidthPx * pxToMm
}

func (r *Renderer) rowHeightMM(sheet *layout.Sheet, row int) float64 {
	if h, ok := sheet.RowHeights[row]; ok {
		return layout.HeightUnitsToPx(h) * pxToMm
	}
	return r.cellHeightPx * pxToMm
}

func (g grid) cols() int { return len(g.colX) - 2 }
func (g grid) rows() int { return len(g.rowY) - 2 }

func (g grid) pageSize(sheet *layout.Sheet) (float64, float64) {
	right := g.colX[len(g.colX)-1]
	bottom := g.rowY[len(g.rowY)-1]
	for _, img := range sheet.Images {
		right = max(right, g.colX[img.Col]+float64(img.Width)*pxToMm)
		bottom = max(bottom, g.rowY[img.Row]+float64(img.Height)*pxToMm)
	}
	return right + pageMargin, bottom + pageMargin
}

func (r *Renderer) drawGrid(ctx *canvas.Context, g grid) {
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(gridColor)
	ctx.SetStrokeWidth(gridWidth)
	left, right := g.colX[1], g.colX[g.cols()+1]
	top, bottom := g.rowY[1], g.rowY[g.rows()+1]
	for row := 1; row <= g.rows()+1; row++ {
		drawLine(ctx, left, g.rowY[row], right, g.rowY[row])
	}
	for col := 1; col <= g.cols()+1; col++ {
		drawLine(ctx, g.colX[col], top, g.colX[col], bottom)
	}
}

func (r *Renderer) drawTexts(ctx *canvas.Context, g grid, sheet *layout.Sheet) error {
	cells := sortedCells(sheet)
	var face *canvas.FontFace
	for _, c := range cells {
		if c.Text == "" {
			continue
		}
		if face == nil {
			family, err := r.fontFamily()
			if err != nil {
				return err
			}
			face = family.Face(r.fontSize, textColor, canvas.FontRegular, canvas.FontNormal)
		}
		// 基线：行顶部 + 内边距 + 字体上升部
		baseline := g.rowY[c.Row] + textPadding + face.Metrics().Ascent
		ctx.DrawText(g.colX[c.Col]+textPadding, baseline, canvas.NewTextLine(face, c.Text, canvas.Left))
	}
	return nil
}

func (r *Renderer) drawBorders(ctx *canvas.Context, g grid, sheet *layout.Sheet) {
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(borderWidth)
	for _, c := range sortedCells(sheet) {
		x0, x1 := g.colX[c.Col], g.colX[c.Col+1]
		y0, y1 := g.rowY[c.Row], g.rowY[c.Row+1]
		switch c.Border {
		case layout.BorderTop:
			drawLine(ctx, x0, y0, x1, y0)
		case layout.BorderRight:
			drawLine(ctx, x1, y0, x1, y1)
		case layout.BorderRightTop:
			drawLine(ctx, x0, y0, x1, y0)
			drawLine(ctx, x1, y0, x1, y1)
		}
	}
}

func (r *Renderer) drawImages(ctx *canvas.Context, g grid, images []layout.ImageBlock) {
	for _, img := range images {
		if img.Image == nil || img.Image.Bounds().Dx() == 0 {
			continue
		}
		// 图片像素按 96 DPI 换算为毫米
		ctx.DrawImage(g.colX[img.Col], g.rowY[img.Row], img.Image, canvas.DPMM(1/pxToMm))
	}
}

func (r *Renderer) fontFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}
	data, err := fonts.Load(r.fontName)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("imgsheet-preview")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", r.fontName, err)
	}
	r.family = family
	return family, nil
}

func drawLine(ctx *canvas.Context, x1, y1, x2, y2 float64) {
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(x2-x1, y2-y1)
	ctx.DrawPath(x1, y1, p)
}

// sortedCells returns the sheet cells ordered by row, then column, so the
// output is byte-for-byte stable across runs.
func sortedCells(sheet *layout.Sheet) []*layout.Cell {
	cells := make([]*layout.Cell, 0, len(sheet.Cells))
	for _, c := range sheet.Cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells
}
