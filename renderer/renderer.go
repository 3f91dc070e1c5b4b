package renderer

import "github.com/ByLCY/imgsheet/layout"

// Renderer 将记录下来的工作表输出为预览文件，例如 PDF。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(sheet *layout.Sheet) ([]byte, error)
}
