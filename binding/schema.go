package binding

import "sort"

// FieldType 描述数据字段的显示类型。
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
)

// FieldSource 区分主记录字段与明细数组字段。
type FieldSource string

const (
	SourceMaster FieldSource = "master"
	SourceDetail FieldSource = "detail"
)

// DataField 是字段清单中的一项；Name 为普通名或 arrayKey.column 形式的点分名。
type DataField struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Type   FieldType   `json:"type"`
	Source FieldSource `json:"source"`
}

// DefaultDetailKey 在字段清单没有声明任何明细字段时使用。
const DefaultDetailKey = "products"

// DetailKey 返回明细数组在数据根对象中的键：取第一个点分明细字段的前缀，
// 否则退回 DefaultDetailKey。
func DetailKey(fields []DataField) string {
	for _, f := range fields {
		if f.Source != SourceDetail {
			continue
		}
		if i := indexDot(f.Name); i > 0 {
			return f.Name[:i]
		}
	}
	return DefaultDetailKey
}

// Lookup 按名称查找字段定义，未找到时返回 nil。
func Lookup(fields []DataField, name string) *DataField {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

// DetailRows 在数据根对象中定位明细数组。优先使用 key 指定的属性；
// 若不存在，则按键名排序扫描第一个数组属性，保证结果确定。
func DetailRows(data map[string]any, key string) []map[string]any {
	if data == nil {
		return nil
	}
	if key != "" {
		if rows := toRows(data[key]); rows != nil {
			return rows
		}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if rows := toRows(data[k]); rows != nil {
			return rows
		}
	}
	return nil
}

// toRows 将 JSON 反序列化得到的数组值转换为行切片；非数组返回 nil。
func toRows(v any) []map[string]any {
	switch arr := v.(type) {
	case []map[string]any:
		return arr
	case []any:
		rows := make([]map[string]any, 0, len(arr))
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		if len(rows) == 0 && len(arr) > 0 {
			return nil
		}
		return rows
	default:
		return nil
	}
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
