package layout

import (
	"fmt"
	"image"
	"strings"
)

// 该文件定义布局引擎的结果与记录模型，供引擎、调试 JSON 与预览渲染共用。

// BorderStyle 描述单元格的粗边框组合。
type BorderStyle int

const (
	BorderNone     BorderStyle = iota
	BorderTop                  // 目录块顶部横线
	BorderRight                // 标签列右侧竖线
	BorderRightTop             // 标签列左上角
)

func (b BorderStyle) String() string {
	switch b {
	case BorderTop:
		return "top"
	case BorderRight:
		return "right"
	case BorderRightTop:
		return "right-top"
	default:
		return "none"
	}
}

// MarshalText 让 JSON 中输出可读的边框名。
func (b BorderStyle) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText parses the names produced by MarshalText.
func (b *BorderStyle) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "none":
		*b = BorderNone
	case "top":
		*b = BorderTop
	case "right":
		*b = BorderRight
	case "right-top":
		*b = BorderRightTop
	default:
		return fmt.Errorf("未知的边框样式 %q", string(text))
	}
	return nil
}

// Cursor 记录下一个目录块的起始单元格（行、列均从 1 开始）。
type Cursor struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ImageBlock 表示缩放后嵌入到工作表中的一张图片。
type ImageBlock struct {
	Name    string      `json:"name"`
	Path    string      `json:"path"`
	Row     int         `json:"row"`
	Col     int         `json:"col"`
	Width   int         `json:"width"`  // px
	Height  int         `json:"height"` // px
	RowSpan int         `json:"rowSpan"`
	Image   image.Image `json:"-"`
}

// DirectoryBlock 记录一个目录在工作表中占用的行块。
type DirectoryBlock struct {
	Path    string       `json:"path"`
	Label   string       `json:"label"`
	Row     int          `json:"row"`
	RowSpan int          `json:"rowSpan"`
	Images  []ImageBlock `json:"images"`
	Missing []string     `json:"missing,omitempty"`
}

// Rows 返回该目录块占用的总行数（图片行 + 标签/间隔行）。
func (d DirectoryBlock) Rows() int { return d.RowSpan + blockPaddingRows }

// Result 汇总一次布局运行的结果。
type Result struct {
	Blocks         []DirectoryBlock `json:"blocks"`
	Visited        int              `json:"visited"`
	EmptySkipped   int              `json:"emptySkipped"`
	ImagesEmbedded int              `json:"imagesEmbedded"`
	ImagesSkipped  int              `json:"imagesSkipped"`
	TotalColumns   int              `json:"totalColumns"`
	LabelWidth     int              `json:"labelWidth"`
	Cursor         Cursor           `json:"cursor"`
}
