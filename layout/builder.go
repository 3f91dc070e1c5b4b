package layout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ByLCY/imgsheet/binding"
)

const (
	labelCol         = 1
	startRow         = 2
	startCol         = 2
	blockPaddingRows = 3 // 标签行 + 间隔行
)

// 标签模板可用的变量。
var (
	DirLabelVars   = []string{"dir", "base"}
	ImageLabelVars = []string{"dir", "base", "name", "index"}
)

// Engine 把根目录下的图片按网格排布到 Surface 上。
type Engine struct {
	opts   Options
	dirs   DirSource
	images ImageSource
	log    *zap.Logger
}

// NewEngine 校验参数并创建布局引擎。
func NewEngine(opts Options, dirs DirSource, images ImageSource) (*Engine, error) {
	if dirs == nil {
		return nil, fmt.Errorf("layout: 缺少目录来源 DirSource")
	}
	if images == nil {
		return nil, fmt.Errorf("layout: 缺少图片来源 ImageSource")
	}
	opts = opts.withDefaults()
	if opts.Root == "" {
		return nil, fmt.Errorf("layout: 根目录不能为空")
	}
	if len(opts.Images) == 0 {
		return nil, fmt.Errorf("layout: 至少需要一个目标图片文件名")
	}
	if err := binding.Check(opts.DirLabel, DirLabelVars...); err != nil {
		return nil, fmt.Errorf("layout: 目录标签: %w", err)
	}
	if err := binding.Check(opts.ImageLabel, ImageLabelVars...); err != nil {
		return nil, fmt.Errorf("layout: 图片标签: %w", err)
	}
	return &Engine{opts: opts, dirs: dirs, images: images, log: opts.Logger}, nil
}

// Options 返回补全默认值后的配置。
func (e *Engine) Options() Options { return e.opts }

// Run 执行一次完整的布局：枚举目录、写入标签与边框、嵌入缩放后的图片，
// 最后把标签列宽设置为最长标签的字符数。Surface 写入失败会立即返回。
func (e *Engine) Run(ctx context.Context, s Surface) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("layout: surface 不能为空")
	}
	totalCols := e.opts.TotalColumns()
	res := &Result{TotalColumns: totalCols}

	if err := e.formatCells(s, totalCols); err != nil {
		return nil, err
	}

	dirs, err := e.dirs.ListDirs(e.opts.Root, e.opts.Traversal == TraversalRecursive)
	if err != nil {
		return nil, fmt.Errorf("枚举目录 %s 失败: %w", e.opts.Root, err)
	}
	e.log.Debug("目录枚举完成",
		zap.String("root", e.opts.Root),
		zap.Stringer("traversal", e.opts.Traversal),
		zap.Int("dirs", len(dirs)))

	cur := Cursor{Row: startRow, Col: startCol}
	maxLabel := 0
	lastSpan := 0
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Visited++

		ok, err := e.dirs.HasFiles(dir)
		if err != nil {
			// 无法读取的目录按空目录处理
			e.log.Warn("目录无法读取，跳过", zap.String("dir", dir), zap.Error(err))
			res.EmptySkipped++
			continue
		}
		if !ok {
			res.EmptySkipped++
			e.log.Debug("跳过空目录", zap.String("dir", dir))
			continue
		}

		if e.opts.RowSpan == RowSpanMax {
			lastSpan = 0
		}
		block, err := e.placeDirectory(s, dir, cur, totalCols, lastSpan)
		if err != nil {
			return res, err
		}
		lastSpan = block.RowSpan
		maxLabel = max(maxLabel, utf8.RuneCountInString(block.Label))
		res.ImagesEmbedded += len(block.Images)
		res.ImagesSkipped += len(block.Missing)
		res.Blocks = append(res.Blocks, block)

		cur.Row += block.Rows()
		cur.Col = startCol
	}

	// 标签列宽直接使用字符数，不做像素换算。
	if err := s.SetColWidth(labelCol, float64(maxLabel)); err != nil {
		return res, surfaceError("列宽", 0, labelCol, err)
	}
	res.LabelWidth = maxLabel
	res.Cursor = cur
	return res, nil
}

// formatCells 在单元格尺寸不是默认值时统一设置列宽与行高。
func (e *Engine) formatCells(s Surface, totalCols int) error {
	if e.opts.CellWidthPx != DefaultCellWidthPx {
		w := PxToWidthUnits(float64(e.opts.CellWidthPx))
		for col := 1; col < totalCols; col++ {
			if err := s.SetColWidth(col, w); err != nil {
				return surfaceError("列宽", 0, col, err)
			}
		}
	}
	if e.opts.CellHeightPx != DefaultCellHeightPx {
		h := PxToHeightUnits(float64(e.opts.CellHeightPx))
		for row := 1; row < e.opts.MaxRows; row++ {
			if err := s.SetRowHeight(row, h); err != nil {
				return surfaceError("行高", row, 0, err)
			}
		}
	}
	return nil
}

// placeDirectory 写出一个目录块。span 是进入该目录时的行数（RowSpanLast 下延续上一个目录）。
func (e *Engine) placeDirectory(s Surface, dir string, cur Cursor, totalCols, span int) (DirectoryBlock, error) {
	row := cur.Row
	block := DirectoryBlock{Path: dir, Row: row}

	for col := 1; col <= totalCols; col++ {
		if err := s.SetBorder(row, col, BorderTop); err != nil {
			return block, surfaceError("边框", row, col, err)
		}
	}

	block.Label = binding.Interpolate(e.opts.DirLabel, binding.Vars{
		"dir":  dir,
		"base": filepath.Base(dir),
	})
	if err := s.SetText(row, labelCol, block.Label); err != nil {
		return block, surfaceError("目录标签", row, labelCol, err)
	}

	col := cur.Col
	for i, name := range e.opts.Images {
		label := binding.Interpolate(e.opts.ImageLabel, binding.Vars{
			"dir":   dir,
			"base":  filepath.Base(dir),
			"name":  name,
			"index": i + 1,
		})
		if err := s.SetText(row, col+1, label); err != nil {
			return block, surfaceError("图片标签", row, col+1, err)
		}

		img, ok := e.loadImage(dir, name)
		if ok {
			img.Row, img.Col = row+1, col+1
			if err := s.EmbedImage(img.Row, img.Col, img); err != nil {
				return block, surfaceError("图片", img.Row, img.Col, err)
			}
			block.Images = append(block.Images, img)
			if e.opts.RowSpan == RowSpanMax {
				span = max(span, img.RowSpan)
			} else {
				span = img.RowSpan
			}
		} else {
			block.Missing = append(block.Missing, name)
		}
		col += e.opts.ColsPerImage
	}
	block.RowSpan = span

	for dr := 0; dr < block.Rows(); dr++ {
		style := BorderRight
		if dr == 0 {
			style = BorderRightTop
		}
		if err := s.SetBorder(row+dr, labelCol, style); err != nil {
			return block, surfaceError("边框", row+dr, labelCol, err)
		}
	}
	return block, nil
}

// loadImage 读取并缩放 dir/name。读取失败不算错误，只记录日志并跳过。
func (e *Engine) loadImage(dir, name string) (ImageBlock, bool) {
	path := filepath.Join(dir, name)
	src, err := e.images.Load(path)
	if err != nil || src == nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.log.Debug("图片不存在，跳过", zap.String("path", path))
		} else {
			e.log.Warn("图片读取失败，跳过", zap.String("path", path), zap.Error(err))
		}
		return ImageBlock{}, false
	}

	b := src.Bounds()
	size := FitWidth(b.Dx(), b.Dy(), e.opts.ImageWidthPx())
	return ImageBlock{
		Name:    name,
		Path:    path,
		Width:   size.Width,
		Height:  size.Height,
		RowSpan: RowSpan(size.Height, e.opts.CellHeightPx),
		Image:   e.images.Resize(src, size.Width, size.Height),
	}, true
}

// SurfaceError 表示写入工作表失败，携带出错的单元格位置。
type SurfaceError struct {
	What string
	Row  int
	Col  int
	Err  error
}

func (e *SurfaceError) Error() string {
	switch {
	case e.Row > 0 && e.Col > 0:
		return fmt.Sprintf("写入%s %s 失败: %v", e.What, CellName(e.Row, e.Col), e.Err)
	case e.Col > 0:
		return fmt.Sprintf("写入%s 列 %s 失败: %v", e.What, ColumnName(e.Col), e.Err)
	default:
		return fmt.Sprintf("写入%s 第 %d 行失败: %v", e.What, e.Row, e.Err)
	}
}

func (e *SurfaceError) Unwrap() error { return e.Err }

func surfaceError(what string, row, col int, err error) error {
	return &SurfaceError{What: what, Row: row, Col: col, Err: err}
}
