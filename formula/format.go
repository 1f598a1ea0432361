package formula

import (
	"strconv"

	"github.com/ByLCY/vellum/binding"
)

// formatResult 将求值结果按目标样式转为最终显示文本。
//   - currency：¥ 前缀 + 千分位 + 两位小数
//   - percent：数值 ×100 后缀 %
//   - number：千分位分组
//   - text/默认：按原值显示
func formatResult(v any, format string) string {
	switch format {
	case "currency":
		if n, ok := toNumber(v); ok {
			return "¥" + binding.GroupDigits(strconv.FormatFloat(n, 'f', 2, 64))
		}
	case "percent":
		if n, ok := toNumber(v); ok {
			return strconv.FormatFloat(n*100, 'f', -1, 64) + "%"
		}
	case "number":
		if n, ok := toNumber(v); ok {
			return binding.GroupDigits(strconv.FormatFloat(n, 'f', -1, 64))
		}
	}
	return toString(v)
}
