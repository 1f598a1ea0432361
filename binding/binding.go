package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fieldPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolve 解析一个字段引用。点分名 arrayKey.column 优先取当前行 row，
// 其次取数据根中同名数组的第一个元素（设计预览场景）；普通名优先取当前行，
// 否则取主记录。第二个返回值指示是否解析成功。
func Resolve(data map[string]any, row map[string]any, name string) (any, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if i := indexDot(name); i > 0 {
		arrayKey, column := name[:i], name[i+1:]
		if row != nil {
			if v, ok := row[column]; ok {
				return v, true
			}
		}
		if rows := toRows(dataValue(data, arrayKey)); len(rows) > 0 {
			if v, ok := rows[0][column]; ok {
				return v, true
			}
		}
		return nil, false
	}
	if row != nil {
		if v, ok := row[name]; ok {
			return v, true
		}
	}
	if v, ok := dataLookup(data, name); ok {
		return v, true
	}
	return nil, false
}

// Interpolate 将静态内容中的 {name} / {arrayKey.column} 占位符替换为数据值。
// 解析失败的占位符替换为 [name]，提示模板作者字段缺失。
func Interpolate(text string, data map[string]any, row map[string]any) string {
	if !strings.ContainsRune(text, '{') {
		return text
	}
	return fieldPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[1 : len(match)-1])
		if name == "" {
			return match
		}
		if v, ok := Resolve(data, row, name); ok {
			return DisplayValue(v)
		}
		return "[" + name + "]"
	})
}

// DisplayValue 将任意数据值转为显示文本。整数值不带小数尾巴。
func DisplayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

// FormatValue 按字段清单中声明的类型格式化显示值；未声明的字段按原样显示。
func FormatValue(field *DataField, v any) string {
	if field == nil {
		return DisplayValue(v)
	}
	switch field.Type {
	case FieldCurrency:
		if n, ok := ToNumber(v); ok {
			return "¥" + GroupDigits(strconv.FormatFloat(n, 'f', 2, 64))
		}
	case FieldNumber:
		if n, ok := ToNumber(v); ok {
			return GroupDigits(strconv.FormatFloat(n, 'f', -1, 64))
		}
	}
	return DisplayValue(v)
}

// ToNumber 尝试将数据值转换为 float64，数字文本也接受。
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// GroupDigits 为十进制数字文本的整数部分添加千分位分隔符。
func GroupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	out := intPart + frac
	if neg {
		out = "-" + out
	}
	return out
}

func dataValue(data map[string]any, key string) any {
	if data == nil {
		return nil
	}
	return data[key]
}

func dataLookup(data map[string]any, key string) (any, bool) {
	if data == nil {
		return nil, false
	}
	v, ok := data[key]
	return v, ok
}
