package layout

import (
	"encoding/json"
	"os"
)

type debugDump struct {
	Result *Result `json:"result"`
	Sheet  *Sheet  `json:"sheet,omitempty"`
}

// WriteDebugJSON 将布局结果与记录的工作表输出为 JSON，便于调试或比对。
func WriteDebugJSON(res *Result, sheet *Sheet, path string) error {
	if res == nil {
		return nil
	}
	data, err := json.MarshalIndent(debugDump{Result: res, Sheet: sheet}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
