package formula

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	exprLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"|'(?:\\.|[^'])*'`},
		{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
		{Name: "Op", Pattern: `\|\||&&|[=!<>]=|[-+*/%<>!=]`},
		{Name: "Punct", Pattern: `[(),.;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	exprParser = participle.MustBuild[Expr](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// Expr is the root AST node for a report formula.
type Expr struct {
	Or *OrExpr `parser:"@@"`
}

// OrExpr chains logical-or terms.
type OrExpr struct {
	Head *AndExpr `parser:"@@"`
	Tail []*OrOp  `parser:"@@*"`
}

// OrOp is one `|| rhs` continuation.
type OrOp struct {
	Expr *AndExpr `parser:"'||' @@"`
}

// AndExpr chains logical-and terms.
type AndExpr struct {
	Head *CmpExpr `parser:"@@"`
	Tail []*AndOp `parser:"@@*"`
}

// AndOp is one `&& rhs` continuation.
type AndOp struct {
	Expr *CmpExpr `parser:"'&&' @@"`
}

// CmpExpr is an optional single comparison between additive expressions.
// A lone `=` is accepted as equality: report authors habitually write the
// spreadsheet form.
type CmpExpr struct {
	Left  *AddExpr `parser:"@@"`
	Op    string   `parser:"( @('==' | '!=' | '>=' | '<=' | '>' | '<' | '=')"`
	Right *AddExpr `parser:"@@ )?"`
}

// AddExpr chains + and - terms.
type AddExpr struct {
	Head *MulExpr `parser:"@@"`
	Tail []*AddOp `parser:"@@*"`
}

// AddOp is one additive continuation.
type AddOp struct {
	Op   string   `parser:"@('+' | '-')"`
	Expr *MulExpr `parser:"@@"`
}

// MulExpr chains *, / and % terms.
type MulExpr struct {
	Head *UnaryExpr `parser:"@@"`
	Tail []*MulOp   `parser:"@@*"`
}

// MulOp is one multiplicative continuation.
type MulOp struct {
	Op   string     `parser:"@('*' | '/' | '%')"`
	Expr *UnaryExpr `parser:"@@"`
}

// UnaryExpr applies an optional leading - or ! to a primary.
type UnaryExpr struct {
	Op      string   `parser:"@('-' | '!')?"`
	Primary *Primary `parser:"@@"`
}

// Primary is a literal, a field reference, a function call, a bare
// identifier, or a parenthesised sub-expression.
type Primary struct {
	Number *float64       `parser:"  @Number"`
	Str    *StringLiteral `parser:"| @String"`
	Field  *FieldRef      `parser:"| @@"`
	Call   *Call          `parser:"| @@"`
	Ident  *string        `parser:"| @Ident"`
	Sub    *Expr          `parser:"| '(' @@ ')'"`
}

// FieldRef is a `{name}` or `{arrayKey.column}` placeholder.
type FieldRef struct {
	Parts []string `parser:"LBrace @Ident ( '.' @Ident )* RBrace"`
}

// Name returns the reference in its dotted source form.
func (f *FieldRef) Name() string {
	return strings.Join(f.Parts, ".")
}

// Call invokes a registered function. COUNT(*) style calls set Star.
type Call struct {
	Name string  `parser:"@Ident '('"`
	Star bool    `parser:"( @'*'"`
	Args []*Expr `parser:"| ( @@ ( ',' @@ )* )? ) ')'"`
}

// StringLiteral unquotes single- or double-quoted strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	raw := values[0]
	if len(raw) < 2 {
		return fmt.Errorf("string literal %q too short", raw)
	}
	*s = StringLiteral(unescape(raw[1 : len(raw)-1]))
	return nil
}

// unescape resolves the escape sequences the lexer admits inside strings.
func unescape(body string) string {
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	escaped := false
	for _, r := range body {
		if escaped {
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fullWidthReplacer maps full-width Chinese punctuation onto the ASCII forms
// the grammar understands, so mixed-locale authoring still parses.
var fullWidthReplacer = strings.NewReplacer(
	"（", "(",
	"）", ")",
	"，", ",",
	"：", ":",
	"；", ";",
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"｛", "{",
	"｝", "}",
	"．", ".",
	"＋", "+",
	"－", "-",
	"＊", "*",
	"／", "/",
	"＝", "=",
	"％", "%",
)

// Normalize applies full-width punctuation mapping and trims the expression.
func Normalize(expression string) string {
	return strings.TrimSpace(fullWidthReplacer.Replace(expression))
}

// Parse normalizes and parses a formula into its AST.
func Parse(expression string) (*Expr, error) {
	return exprParser.ParseString("", Normalize(expression))
}
