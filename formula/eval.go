package formula

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ByLCY/vellum/binding"
)

// 计算失败时返回给渲染层的占位文本，公式坏了也不能让整页渲染中断。
const (
	ParseErrorText = "[公式错误]"
	EvalErrorText  = "[计算错误]"
)

// Context 是一次求值的临时上下文：数据根对象、当前页与行窗口。
// 每次求值构造一个，绝不持久化。
type Context struct {
	Data       map[string]any // 数据根对象（主记录 + 明细数组）
	Row        map[string]any // 当前明细行，设计预览时为 nil
	DetailKey  string         // 明细数组在数据根中的键
	Page       int            // 当前页码（1 起）
	TotalPages int            // 总页数
	RowIndex   int            // 绝对行号（0 起，{rowIndex} 显示为 1 起）
	StartIndex int            // 当前页首行在明细数组中的下标
	PageSize   int            // 当前页行数窗口
	Now        time.Time      // 注入时钟；零值时取 time.Now()
}

func (c *Context) now() time.Time {
	if c != nil && !c.Now.IsZero() {
		return c.Now
	}
	return time.Now()
}

// Options 控制求值结果的格式化方式。
type Options struct {
	Format string // ""/"text"、"number"、"currency"、"percent"
}

// Result 携带格式化文本与求值期间未能解析的字段名。
type Result struct {
	Text       string
	Unresolved []string
}

// Engine 持有函数注册表并执行公式求值。Engine 自身无状态，可并发使用。
type Engine struct {
	reg *Registry
}

// New 创建带内建函数的求值引擎。
func New() *Engine {
	return &Engine{reg: NewRegistry()}
}

// NewWithRegistry 使用调用方构造的注册表创建引擎，便于隔离测试与扩展。
func NewWithRegistry(reg *Registry) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Engine{reg: reg}
}

// Registry 返回引擎使用的函数注册表。
func (e *Engine) Registry() *Registry { return e.reg }

// Evaluate 对表达式求值并返回格式化文本。任何解析或求值失败都降级为
// 占位文本，绝不向调用方抛出。
func (e *Engine) Evaluate(expression string, ctx *Context, opts Options) string {
	res, _ := e.EvaluateDetailed(expression, ctx, opts)
	return res.Text
}

// EvaluateDetailed 与 Evaluate 相同，但额外返回未解析字段清单与底层错误，
// 供校验与诊断使用。
func (e *Engine) EvaluateDetailed(expression string, ctx *Context, opts Options) (Result, error) {
	ast, err := Parse(expression)
	if err != nil {
		return Result{Text: ParseErrorText}, fmt.Errorf("解析公式失败: %w", err)
	}
	st := &evalState{engine: e, ctx: ctx}
	v, err := st.evalExpr(ast)
	if err != nil {
		return Result{Text: EvalErrorText, Unresolved: st.unresolved}, err
	}
	return Result{Text: formatResult(v, opts.Format), Unresolved: st.unresolved}, nil
}

// EvaluateNumber 求值并要求数值结果，供行高一类的布局公式使用。
// 非数值结果返回错误，调用方落回静态默认值。
func (e *Engine) EvaluateNumber(expression string, ctx *Context) (float64, error) {
	ast, err := Parse(expression)
	if err != nil {
		return 0, fmt.Errorf("解析公式失败: %w", err)
	}
	st := &evalState{engine: e, ctx: ctx}
	v, err := st.evalExpr(ast)
	if err != nil {
		return 0, err
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, fmt.Errorf("公式结果 %q 不是数值", toString(v))
	}
	return n, nil
}

// evalState 收集单次求值过程中的未解析字段。
type evalState struct {
	engine     *Engine
	ctx        *Context
	unresolved []string
}

func (st *evalState) evalExpr(e *Expr) (any, error) {
	return st.evalOr(e.Or)
}

func (st *evalState) evalOr(e *OrExpr) (any, error) {
	v, err := st.evalAnd(e.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Tail {
		if toBool(v) {
			return true, nil
		}
		if v, err = st.evalAnd(t.Expr); err != nil {
			return nil, err
		}
	}
	if len(e.Tail) > 0 {
		return toBool(v), nil
	}
	return v, nil
}

func (st *evalState) evalAnd(e *AndExpr) (any, error) {
	v, err := st.evalCmp(e.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Tail {
		if !toBool(v) {
			return false, nil
		}
		if v, err = st.evalCmp(t.Expr); err != nil {
			return nil, err
		}
	}
	if len(e.Tail) > 0 {
		return toBool(v), nil
	}
	return v, nil
}

func (st *evalState) evalCmp(e *CmpExpr) (any, error) {
	left, err := st.evalAdd(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := st.evalAdd(e.Right)
	if err != nil {
		return nil, err
	}
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		switch e.Op {
		case "==", "=":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case ">":
			return ln > rn, nil
		case "<":
			return ln < rn, nil
		case ">=":
			return ln >= rn, nil
		case "<=":
			return ln <= rn, nil
		}
	}
	ls, rs := toString(left), toString(right)
	switch e.Op {
	case "==", "=":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case ">":
		return ls > rs, nil
	case "<":
		return ls < rs, nil
	case ">=":
		return ls >= rs, nil
	case "<=":
		return ls <= rs, nil
	}
	return nil, fmt.Errorf("不支持的比较运算符 %q", e.Op)
}

func (st *evalState) evalAdd(e *AddExpr) (any, error) {
	v, err := st.evalMul(e.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Tail {
		rhs, err := st.evalMul(t.Expr)
		if err != nil {
			return nil, err
		}
		ln, lok := toNumber(v)
		rn, rok := toNumber(rhs)
		switch t.Op {
		case "+":
			// 任一侧不是数值时按文本拼接，与模板作者的直觉保持一致。
			if lok && rok {
				v = ln + rn
			} else {
				v = toString(v) + toString(rhs)
			}
		case "-":
			if !lok || !rok {
				return nil, fmt.Errorf("减法要求数值操作数")
			}
			v = ln - rn
		}
	}
	return v, nil
}

func (st *evalState) evalMul(e *MulExpr) (any, error) {
	v, err := st.evalUnary(e.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Tail {
		rhs, err := st.evalUnary(t.Expr)
		if err != nil {
			return nil, err
		}
		ln, lok := toNumber(v)
		rn, rok := toNumber(rhs)
		if !lok || !rok {
			return nil, fmt.Errorf("乘除运算要求数值操作数")
		}
		switch t.Op {
		case "*":
			v = ln * rn
		case "/":
			if rn == 0 {
				return nil, fmt.Errorf("除数为零")
			}
			v = ln / rn
		case "%":
			if rn == 0 {
				return nil, fmt.Errorf("除数为零")
			}
			v = math.Mod(ln, rn)
		}
	}
	return v, nil
}

func (st *evalState) evalUnary(e *UnaryExpr) (any, error) {
	v, err := st.evalPrimary(e.Primary)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "-":
		n, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("负号要求数值操作数")
		}
		return -n, nil
	case "!":
		return !toBool(v), nil
	}
	return v, nil
}

func (st *evalState) evalPrimary(p *Primary) (any, error) {
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Str != nil:
		return string(*p.Str), nil
	case p.Field != nil:
		return st.evalField(p.Field), nil
	case p.Call != nil:
		return st.evalCall(p.Call)
	case p.Ident != nil:
		switch *p.Ident {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		// 裸标识符当作文本字面量，容忍作者忘写引号。
		return *p.Ident, nil
	case p.Sub != nil:
		return st.evalExpr(p.Sub)
	}
	return nil, fmt.Errorf("空表达式")
}

// evalField 解析 {name} 引用：系统变量优先于数据字段，
// 未能解析的字段降级为 [name] 并记录。
func (st *evalState) evalField(f *FieldRef) any {
	name := f.Name()
	ctx := st.ctx
	if ctx == nil {
		ctx = &Context{}
	}
	if len(f.Parts) == 1 {
		switch name {
		case "currentDate":
			return ctx.now().Format("2006-01-02")
		case "currentTime":
			return ctx.now().Format("15:04:05")
		case "pageNumber":
			return float64(ctx.Page)
		case "totalPages":
			return float64(ctx.TotalPages)
		case "rowIndex":
			return float64(ctx.RowIndex + 1)
		}
	}
	if v, ok := binding.Resolve(ctx.Data, ctx.Row, name); ok {
		return v
	}
	st.unresolved = append(st.unresolved, name)
	return "[" + name + "]"
}

func (st *evalState) evalCall(c *Call) (any, error) {
	name := strings.ToUpper(c.Name)
	if spec, ok := aggregates[name]; ok {
		return st.evalAggregate(name, spec, c)
	}
	fn, ok := st.engine.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("未定义的函数: %s", c.Name)
	}
	args := make([]any, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := st.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(args)
}

// aggKind 标识聚合的归约方式。
type aggKind int

const (
	aggCount aggKind = iota
	aggSum
	aggAvg
	aggMax
	aggMin
)

type aggSpec struct {
	kind aggKind
	page bool // 仅归约当前页行窗口
}

// aggregates 是语法内建的聚合函数：它们接受字段引用而不是标量，
// 必须由解释器直接归约明细数组，不能进入普通函数注册表。
var aggregates = map[string]aggSpec{
	"COUNT":     {kind: aggCount},
	"SUM":       {kind: aggSum},
	"AVG":       {kind: aggAvg},
	"MAX":       {kind: aggMax},
	"MIN":       {kind: aggMin},
	"PAGECOUNT": {kind: aggCount, page: true},
	"PAGESUM":   {kind: aggSum, page: true},
	"PAGEAVG":   {kind: aggAvg, page: true},
	"PAGEMAX":   {kind: aggMax, page: true},
	"PAGEMIN":   {kind: aggMin, page: true},
}

func (st *evalState) evalAggregate(name string, spec aggSpec, c *Call) (any, error) {
	ctx := st.ctx
	if ctx == nil {
		ctx = &Context{}
	}

	arrayKey := ctx.DetailKey
	column := ""
	switch {
	case c.Star:
		// COUNT(*) 形态，无字段参数。
	case len(c.Args) == 1:
		field := singleFieldRef(c.Args[0])
		if field == nil {
			return nil, fmt.Errorf("%s 的参数必须是字段引用或 *", name)
		}
		if len(field.Parts) == 2 {
			arrayKey, column = field.Parts[0], field.Parts[1]
		} else {
			column = field.Parts[0]
		}
	default:
		return nil, fmt.Errorf("%s 需要一个字段引用参数", name)
	}

	rows := binding.DetailRows(ctx.Data, arrayKey)
	if spec.page {
		rows = pageWindow(rows, ctx.StartIndex, ctx.PageSize)
	}

	if spec.kind == aggCount && column == "" {
		return float64(len(rows)), nil
	}
	if column == "" {
		return nil, fmt.Errorf("%s 需要指定字段", name)
	}

	var (
		sum   float64
		count int
		best  float64
	)
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		n, ok := binding.ToNumber(v)
		if !ok {
			continue
		}
		if count == 0 {
			best = n
		} else {
			switch spec.kind {
			case aggMax:
				if n > best {
					best = n
				}
			case aggMin:
				if n < best {
					best = n
				}
			}
		}
		sum += n
		count++
	}

	switch spec.kind {
	case aggCount:
		return float64(count), nil
	case aggSum:
		return sum, nil
	case aggAvg:
		if count == 0 {
			return 0.0, nil
		}
		return sum / float64(count), nil
	case aggMax, aggMin:
		if count == 0 {
			return 0.0, nil
		}
		return best, nil
	}
	return nil, fmt.Errorf("未知聚合 %s", name)
}

// singleFieldRef 在参数恰为一个裸字段引用时返回它。
func singleFieldRef(e *Expr) *FieldRef {
	if e == nil || e.Or == nil || len(e.Or.Tail) > 0 {
		return nil
	}
	and := e.Or.Head
	if and == nil || len(and.Tail) > 0 {
		return nil
	}
	cmp := and.Head
	if cmp == nil || cmp.Op != "" {
		return nil
	}
	add := cmp.Left
	if add == nil || len(add.Tail) > 0 {
		return nil
	}
	mul := add.Head
	if mul == nil || len(mul.Tail) > 0 {
		return nil
	}
	u := mul.Head
	if u == nil || u.Op != "" || u.Primary == nil {
		return nil
	}
	return u.Primary.Field
}

// pageWindow 取 [start, start+size) 的行切片，越界时收缩到边界。
func pageWindow(rows []map[string]any, start, size int) []map[string]any {
	if start < 0 {
		start = 0
	}
	if start >= len(rows) || size <= 0 {
		return nil
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func toNumber(v any) (float64, bool) {
	return binding.ToNumber(v)
}

func toString(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	return binding.DisplayValue(v)
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != "" && x != "false"
	case nil:
		return false
	default:
		return true
	}
}
