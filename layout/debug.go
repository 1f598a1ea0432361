package layout

import (
	"encoding/json"
	"os"
)

// WriteDebugJSON 将合成结果输出为 JSON，便于调试或可视化分页决策。
func WriteDebugJSON(doc *Document, path string) error {
	if doc == nil {
		return nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
