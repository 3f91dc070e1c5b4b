package fonts

import (
	"fmt"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
)

// Default 是预览渲染默认使用的字体名。
const Default = "regular"

var builtin = map[string][]byte{
	"regular": lmroman10regular.TTF,
	"bold":    lmroman10bold.TTF,
	"italic":  lmroman10italic.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:bold" 或直接 "bold"（可选 regular/bold/italic）。
func Load(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(name, "embed:"))
	if key == "" {
		key = Default
	}
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体（可选 regular/bold/italic）", name)
	}
	return data, nil
}
