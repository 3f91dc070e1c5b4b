package layout

import (
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"
)

// Traversal 决定目录枚举的深度。
type Traversal int

const (
	// TraversalRecursive 枚举根目录本身及其下所有层级的目录。
	TraversalRecursive Traversal = iota
	// TraversalShallow 只枚举根目录的直接子目录。
	TraversalShallow
)

func (t Traversal) String() string {
	if t == TraversalShallow {
		return "shallow"
	}
	return "recursive"
}

// ParseTraversal accepts "recursive" (default when empty) or "shallow".
func ParseTraversal(s string) (Traversal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recursive", "deep":
		return TraversalRecursive, nil
	case "shallow", "flat":
		return TraversalShallow, nil
	default:
		return TraversalRecursive, fmt.Errorf("未知的遍历方式 %q（可选 recursive/shallow）", s)
	}
}

// RowSpanMode 决定目录块的行高取哪张图片的行数。
type RowSpanMode int

const (
	// RowSpanLast 使用最后一张成功缩放的图片的行数。
	// 该值在目录之间延续：没有任何图片的目录沿用上一张图片的行数。
	RowSpanLast RowSpanMode = iota
	// RowSpanMax 使用当前目录内所有图片的最大行数，避免图片被下一个目录块覆盖。
	RowSpanMax
)

func (m RowSpanMode) String() string {
	if m == RowSpanMax {
		return "max"
	}
	return "last"
}

// ParseRowSpanMode accepts "last" (default when empty) or "max".
func ParseRowSpanMode(s string) (RowSpanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return RowSpanLast, nil
	case "max", "tallest":
		return RowSpanMax, nil
	default:
		return RowSpanLast, fmt.Errorf("未知的行数策略 %q（可选 last/max）", s)
	}
}

// Options 配置布局引擎。零值字段在 NewEngine 中回落到默认值。
type Options struct {
	Root   string
	Images []string

	CellWidthPx     int
	CellHeightPx    int
	ColsPerImage    int
	ImageWidthCells int
	MaxRows         int

	Traversal Traversal
	RowSpan   RowSpanMode

	// 标签模板，支持 ${dir}、${base}、${name}、${index}。
	DirLabel   string
	ImageLabel string

	Logger *zap.Logger
}

const (
	defaultColsPerImage    = 4
	defaultImageWidthCells = 3
	defaultMaxRows         = 1000
	defaultDirLabel        = "${dir}"
	defaultImageLabel      = "${name}"
)

// DefaultOptions 返回默认的几何参数：88x18 像素单元格，每张图片占 4 列、宽 3 个单元格。
func DefaultOptions() Options {
	return Options{
		CellWidthPx:     DefaultCellWidthPx,
		CellHeightPx:    DefaultCellHeightPx,
		ColsPerImage:    defaultColsPerImage,
		ImageWidthCells: defaultImageWidthCells,
		MaxRows:         defaultMaxRows,
		DirLabel:        defaultDirLabel,
		ImageLabel:      defaultImageLabel,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CellWidthPx <= 0 {
		o.CellWidthPx = d.CellWidthPx
	}
	if o.CellHeightPx <= 0 {
		o.CellHeightPx = d.CellHeightPx
	}
	if o.ColsPerImage <= 0 {
		o.ColsPerImage = d.ColsPerImage
	}
	if o.ImageWidthCells <= 0 {
		o.ImageWidthCells = d.ImageWidthCells
	}
	if o.MaxRows <= 0 {
		o.MaxRows = d.MaxRows
	}
	if o.DirLabel == "" {
		o.DirLabel = d.DirLabel
	}
	if o.ImageLabel == "" {
		o.ImageLabel = d.ImageLabel
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// TotalColumns 返回一个目录块横跨的列数：标签列 + 每张图片 ColsPerImage 列。
func (o Options) TotalColumns() int { return 1 + o.ColsPerImage*len(o.Images) }

// ImageWidthPx 返回缩放后图片的统一宽度。
func (o Options) ImageWidthPx() int { return o.CellWidthPx * o.ImageWidthCells }

// Surface 是可按 (row, col) 寻址的工作表抽象，行列均从 1 开始。
type Surface interface {
	SetText(row, col int, text string) error
	SetBorder(row, col int, style BorderStyle) error
	SetColWidth(col int, width float64) error
	SetRowHeight(row int, height float64) error
	EmbedImage(row, col int, block ImageBlock) error
}

// DirSource 负责目录枚举。
type DirSource interface {
	ListDirs(root string, recursive bool) ([]string, error)
	HasFiles(dir string) (bool, error)
}

// ImageSource 负责图片读取与缩放；Load 失败只会导致跳过该图片。
type ImageSource interface {
	Load(path string) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
}
