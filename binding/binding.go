package binding

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Vars 是模板可引用的变量表。
type Vars map[string]any

// Interpolate 将文本中的 ${name} 替换为 vars 中的值。
// 若 vars 为空或变量不存在，则保留原占位符。
func Interpolate(text string, vars Vars) string {
	if len(vars) == 0 || !strings.Contains(text, "${") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderName(match)
		if name == "" {
			return match
		}
		if val, ok := vars[name]; ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Placeholders 返回模板中引用的变量名（去重、排序）。
func Placeholders(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range exprPattern.FindAllString(text, -1) {
		if name := placeholderName(m); name != "" {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check 校验模板只引用 allowed 中列出的变量。
func Check(text string, allowed ...string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	for _, name := range Placeholders(text) {
		if _, found := ok[name]; !found {
			return fmt.Errorf("模板 %q 引用了未知变量 ${%s}（可用: %s）", text, name, strings.Join(allowed, ", "))
		}
	}
	return nil
}

func placeholderName(match string) string {
	groups := exprPattern.FindStringSubmatch(match)
	if len(groups) < 2 {
		return ""
	}
	return strings.TrimSpace(groups[1])
}
