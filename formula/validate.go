package formula

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateFormula 对公式做静态检查：括号/花括号/引号配平与顶层函数调用
// 之后的多余内容。只分析文本，不求值，供编辑器在保存前给出提示。
func ValidateFormula(expression string) error {
	src := Normalize(expression)
	if src == "" {
		return fmt.Errorf("公式为空")
	}

	var parenDepth, braceDepth int
	var quote rune
	topCallEnd := -1 // 顶层函数调用右括号的位置
	for i, r := range src {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '(':
			parenDepth++
		case ')':
			parenDepth--
			if parenDepth < 0 {
				return fmt.Errorf("多余的右括号 )")
			}
			if parenDepth == 0 && topCallEnd < 0 && startsWithCall(src) {
				topCallEnd = i
			}
		case '{':
			braceDepth++
			if braceDepth > 1 {
				return fmt.Errorf("字段引用不能嵌套 {")
			}
		case '}':
			braceDepth--
			if braceDepth < 0 {
				return fmt.Errorf("多余的右花括号 }")
			}
		}
	}
	if quote != 0 {
		return fmt.Errorf("引号未闭合 %c", quote)
	}
	if braceDepth > 0 {
		return fmt.Errorf("字段引用缺少右花括号 }")
	}
	if parenDepth > 0 {
		return fmt.Errorf("缺少右括号 )")
	}
	if topCallEnd >= 0 {
		rest := strings.TrimSpace(src[topCallEnd+1:])
		switch {
		case rest == "":
		case startsWithOperator(rest):
			// 以运算符续写时整体过一遍语法，悬空的运算符在此暴露。
			if _, err := exprParser.ParseString("", src); err != nil {
				return fmt.Errorf("函数调用之后的表达式不完整: %q", rest)
			}
		default:
			return fmt.Errorf("函数调用之后存在多余内容: %q", rest)
		}
	}
	return nil
}

// ValidateFormulaWithExecution 在静态检查之外，用调用方提供的模拟数据
// 跑一遍完整求值管线，把常见运行错误翻译为可读提示。
func (e *Engine) ValidateFormulaWithExecution(expression string, mock *Context) error {
	if err := ValidateFormula(expression); err != nil {
		return err
	}
	if _, err := Parse(expression); err != nil {
		return fmt.Errorf("公式语法不正确: %v", err)
	}
	res, err := e.EvaluateDetailed(expression, mock, Options{})
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "未定义的函数"):
			return fmt.Errorf("%v（可用函数：%s）", err, strings.Join(e.reg.Names(), "、"))
		case strings.Contains(msg, "除数为零"):
			return fmt.Errorf("公式存在除零运算")
		default:
			return fmt.Errorf("公式执行失败: %v", err)
		}
	}
	if len(res.Unresolved) > 0 {
		return fmt.Errorf("以下字段在数据中不存在: %s", strings.Join(res.Unresolved, "、"))
	}
	return nil
}

// startsWithCall 判断表达式是否以 IDENT( 形态开头。
func startsWithCall(src string) bool {
	i := 0
	runes := []rune(src)
	for i < len(runes) && (unicode.IsLetter(runes[i]) || runes[i] == '_' || (i > 0 && unicode.IsDigit(runes[i]))) {
		i++
	}
	if i == 0 {
		return false
	}
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i < len(runes) && runes[i] == '('
}

// startsWithOperator 判断剩余文本是否以二元运算符继续（那不算多余内容）。
func startsWithOperator(rest string) bool {
	for _, op := range []string{"||", "&&", "==", "!=", ">=", "<=", "+", "-", "*", "/", "%", ">", "<", "="} {
		if strings.HasPrefix(rest, op) {
			return true
		}
	}
	return false
}
