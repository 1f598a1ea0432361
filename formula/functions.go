package formula

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ByLCY/vellum/binding"
)

// Func 是注册表中一个标量函数的实现。
type Func func(args []any) (any, error)

// Registry 保存公式可调用的函数。按大写名注册，重复注册静默覆盖。
// 注册表由调用方构造并交给 Engine，而不是进程级全局状态。
type Registry struct {
	funcs map[string]Func
}

// NewRegistry 构造带全部内建函数的注册表。
func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]Func{}}
	r.registerBuiltins()
	return r
}

// Register 注册或覆盖一个函数，名称统一转为大写。
func (r *Registry) Register(name string, fn Func) {
	if name == "" || fn == nil {
		return
	}
	r.funcs[strings.ToUpper(name)] = fn
}

// Get 按大写名查找函数。
func (r *Registry) Get(name string) (Func, bool) {
	fn, ok := r.funcs[strings.ToUpper(name)]
	return fn, ok
}

// Names 返回已注册函数名的有序列表，供校验提示使用。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) registerBuiltins() {
	// 数学
	r.Register("ROUND", fnRound)
	r.Register("ABS", numeric1("ABS", math.Abs))
	r.Register("INT", numeric1("INT", math.Trunc))
	r.Register("CEIL", numeric1("CEIL", math.Ceil))
	r.Register("FLOOR", numeric1("FLOOR", math.Floor))

	// 逻辑
	r.Register("IF", fnIf)
	r.Register("AND", fnAnd)
	r.Register("OR", fnOr)
	r.Register("NOT", fnNot)

	// 字符串
	r.Register("CONCAT", fnConcat)
	r.Register("LEN", fnLen)
	r.Register("LEFT", fnLeft)
	r.Register("RIGHT", fnRight)
	r.Register("UPPER", string1(strings.ToUpper))
	r.Register("LOWER", string1(strings.ToLower))
	r.Register("TRIM", string1(strings.TrimSpace))
	r.Register("REPLACE", fnReplace)

	// 日期
	r.Register("DATEFORMAT", fnDateFormat)

	// 财务
	r.Register("CURRENCY", fnCurrency)
	r.Register("TOCHINESE", fnToChinese)
	r.Register("TAX", fnTax)
	r.Register("EXTAX", fnExTax)
}

func argNumber(name string, args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s 缺少第 %d 个参数", name, i+1)
	}
	n, ok := toNumber(args[i])
	if !ok {
		return 0, fmt.Errorf("%s 的第 %d 个参数不是数值", name, i+1)
	}
	return n, nil
}

func numeric1(name string, f func(float64) float64) Func {
	return func(args []any) (any, error) {
		n, err := argNumber(name, args, 0)
		if err != nil {
			return nil, err
		}
		return f(n), nil
	}
}

func string1(f func(string) string) Func {
	return func(args []any) (any, error) {
		if len(args) < 1 {
			return "", nil
		}
		return f(toString(args[0])), nil
	}
}

// fnRound 实现 ROUND(x[, digits])，digits 省略时取 0。
func fnRound(args []any) (any, error) {
	n, err := argNumber("ROUND", args, 0)
	if err != nil {
		return nil, err
	}
	digits := 0.0
	if len(args) > 1 {
		if digits, err = argNumber("ROUND", args, 1); err != nil {
			return nil, err
		}
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(n*scale) / scale, nil
}

func fnIf(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("IF 需要条件与至少一个分支")
	}
	if toBool(args[0]) {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return "", nil
}

func fnAnd(args []any) (any, error) {
	for _, a := range args {
		if !toBool(a) {
			return false, nil
		}
	}
	return true, nil
}

func fnOr(args []any) (any, error) {
	for _, a := range args {
		if toBool(a) {
			return true, nil
		}
	}
	return false, nil
}

func fnNot(args []any) (any, error) {
	if len(args) < 1 {
		return true, nil
	}
	return !toBool(args[0]), nil
}

func fnConcat(args []any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(toString(a))
	}
	return b.String(), nil
}

func fnLen(args []any) (any, error) {
	if len(args) < 1 {
		return 0.0, nil
	}
	return float64(len([]rune(toString(args[0])))), nil
}

func fnLeft(args []any) (any, error) {
	s := ""
	if len(args) > 0 {
		s = toString(args[0])
	}
	n, err := argNumber("LEFT", args, 1)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	k := int(n)
	if k < 0 {
		k = 0
	}
	if k > len(runes) {
		k = len(runes)
	}
	return string(runes[:k]), nil
}

func fnRight(args []any) (any, error) {
	s := ""
	if len(args) > 0 {
		s = toString(args[0])
	}
	n, err := argNumber("RIGHT", args, 1)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	k := int(n)
	if k < 0 {
		k = 0
	}
	if k > len(runes) {
		k = len(runes)
	}
	return string(runes[len(runes)-k:]), nil
}

func fnReplace(args []any) (any, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("REPLACE 需要 3 个参数")
	}
	return strings.ReplaceAll(toString(args[0]), toString(args[1]), toString(args[2])), nil
}

// dateLayouts 列出可被 DATEFORMAT 解析的输入格式。
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
}

// fnDateFormat 实现 DATEFORMAT(value[, pattern])，pattern 使用
// YYYY/MM/DD/HH/mm/ss 记号，默认 YYYY-MM-DD。
func fnDateFormat(args []any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("DATEFORMAT 缺少日期参数")
	}
	raw := strings.TrimSpace(toString(args[0]))
	var parsed time.Time
	var err error
	for _, layout := range dateLayouts {
		if parsed, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("无法解析日期 %q", raw)
	}
	pattern := "YYYY-MM-DD"
	if len(args) > 1 {
		pattern = toString(args[1])
	}
	layout := strings.NewReplacer(
		"YYYY", "2006",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	).Replace(pattern)
	return parsed.Format(layout), nil
}

func fnCurrency(args []any) (any, error) {
	n, err := argNumber("CURRENCY", args, 0)
	if err != nil {
		return nil, err
	}
	return "¥" + binding.GroupDigits(strconv.FormatFloat(n, 'f', 2, 64)), nil
}

// fnTax 计算含税金额中的税额：amount × rate ÷ (1 + rate)。
func fnTax(args []any) (any, error) {
	amount, err := argNumber("TAX", args, 0)
	if err != nil {
		return nil, err
	}
	rate, err := argNumber("TAX", args, 1)
	if err != nil {
		return nil, err
	}
	if rate <= -1 {
		return nil, fmt.Errorf("TAX 的税率不合法")
	}
	return amount * rate / (1 + rate), nil
}

// fnExTax 计算含税金额的不含税部分：amount ÷ (1 + rate)。
func fnExTax(args []any) (any, error) {
	amount, err := argNumber("EXTAX", args, 0)
	if err != nil {
		return nil, err
	}
	rate, err := argNumber("EXTAX", args, 1)
	if err != nil {
		return nil, err
	}
	if rate <= -1 {
		return nil, fmt.Errorf("EXTAX 的税率不合法")
	}
	return amount / (1 + rate), nil
}

var (
	cnDigits   = []rune("零壹贰叁肆伍陆柒捌玖")
	cnUnits    = []string{"", "拾", "佰", "仟"}
	cnSections = []string{"", "万", "亿", "万亿"}
)

// fnToChinese 将金额转为人民币大写（元角分，整数结尾补"整"）。
func fnToChinese(args []any) (any, error) {
	n, err := argNumber("TOCHINESE", args, 0)
	if err != nil {
		return nil, err
	}
	if math.Abs(n) >= 1e16 {
		return nil, fmt.Errorf("TOCHINESE 的金额超出范围")
	}
	var b strings.Builder
	if n < 0 {
		b.WriteString("负")
		n = -n
	}
	cents := int64(math.Round(n * 100))
	yuan := cents / 100
	jiao := (cents % 100) / 10
	fen := cents % 10

	if yuan == 0 {
		b.WriteString("零元")
	} else {
		b.WriteString(chineseInteger(yuan))
		b.WriteString("元")
	}
	switch {
	case jiao == 0 && fen == 0:
		b.WriteString("整")
	case fen == 0:
		b.WriteRune(cnDigits[jiao])
		b.WriteString("角整")
	case jiao == 0:
		b.WriteString("零")
		b.WriteRune(cnDigits[fen])
		b.WriteString("分")
	default:
		b.WriteRune(cnDigits[jiao])
		b.WriteString("角")
		b.WriteRune(cnDigits[fen])
		b.WriteString("分")
	}
	return b.String(), nil
}

// chineseInteger 按 4 位一节转换非负整数，节间补万/亿。
func chineseInteger(n int64) string {
	if n == 0 {
		return "零"
	}
	var sections []int64
	for n > 0 {
		sections = append(sections, n%10000)
		n /= 10000
	}
	var b strings.Builder
	for i := len(sections) - 1; i >= 0; i-- {
		sec := sections[i]
		if sec == 0 {
			continue
		}
		// 千位不满的节承接前文时需要补零，例如壹拾万零贰佰。
		if b.Len() > 0 && sec < 1000 {
			b.WriteString("零")
		}
		b.WriteString(chineseSection(sec))
		b.WriteString(cnSections[i])
	}
	return b.String()
}

// chineseSection 转换 0-9999 的一节；整节为零返回空串。
func chineseSection(n int64) string {
	if n == 0 {
		return ""
	}
	var b strings.Builder
	zeroPending := false
	for pos := 3; pos >= 0; pos-- {
		digit := n / int64(math.Pow10(pos)) % 10
		if digit == 0 {
			if b.Len() > 0 {
				zeroPending = true
			}
			continue
		}
		if zeroPending {
			b.WriteString("零")
			zeroPending = false
		}
		b.WriteRune(cnDigits[digit])
		b.WriteString(cnUnits[pos])
	}
	return b.String()
}
