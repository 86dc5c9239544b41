package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// CalculatorTool evaluates arithmetic expressions in a hermetic Starlark
// thread. The only predeclared name is pow; no I/O, no imports, so
// planner-supplied expressions can never reach the host.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) Name() string        { return "calculator" }
func (t *CalculatorTool) Description() string { return "Evaluate an arithmetic expression" }
func (t *CalculatorTool) Category() Category  { return CategoryAccounting }

// Read-only computation, safe to auto-approve.
func (t *CalculatorTool) RequiresApproval() bool { return false }

func (t *CalculatorTool) ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{"type": "string", "minLength": 1},
			"precision":  map[string]any{"type": "integer", "minimum": 0, "maximum": 15},
		},
		"required":             []any{"expression"},
		"additionalProperties": false,
	}
}

func (t *CalculatorTool) ValidateInput(args map[string]any) bool {
	expr, ok := args["expression"].(string)
	return ok && expr != ""
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) Result {
	expr, _ := args["expression"].(string)

	precision := 2
	if p, ok := asInt(args["precision"]); ok {
		precision = p
	}

	thread := &starlark.Thread{Name: "calculator"}
	env := starlark.StringDict{"pow": powBuiltin}
	value, err := starlark.Eval(thread, "<expr>", rewritePower(expr), env)
	if err != nil {
		return Failure(fmt.Sprintf("invalid expression: %v", err))
	}

	num, ok := asFloat(value)
	if !ok {
		return Failure(fmt.Sprintf("expression did not produce a number (got %s)", value.Type()))
	}

	rounded := roundTo(num, precision)
	return Result{
		Success: true,
		Result:  strconv.FormatFloat(rounded, 'f', -1, 64),
		Metadata: map[string]any{
			"expression": expr,
			"precision":  precision,
		},
	}
}

var powBuiltin = starlark.NewBuiltin("pow", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exponent starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exponent); err != nil {
		return nil, err
	}
	bf, ok := asFloat(base)
	if !ok {
		return nil, fmt.Errorf("pow: base must be a number, got %s", base.Type())
	}
	ef, ok := asFloat(exponent)
	if !ok {
		return nil, fmt.Errorf("pow: exponent must be a number, got %s", exponent.Type())
	}
	return starlark.Float(math.Pow(bf, ef)), nil
})

// Starlark has no exponentiation operator, but arithmetic expressions
// conventionally use the ** form. rewritePower converts each ** into a call
// to the predeclared pow, rewriting the rightmost operator first so chained
// exponents stay right-associative (2 ** 3 ** 2 == pow(2, pow(3, 2))). A
// unary minus stays outside the operand, preserving -2 ** 2 == -4.
func rewritePower(expr string) string {
	for {
		op := strings.LastIndex(expr, "**")
		if op < 0 {
			return expr
		}
		ls := leftOperandStart(expr, op)
		re := rightOperandEnd(expr, op+2)
		left := strings.TrimSpace(expr[ls:op])
		right := strings.TrimSpace(expr[op+2 : re])
		expr = expr[:ls] + "pow(" + left + ", " + right + ")" + expr[re:]
	}
}

// leftOperandStart finds where the base operand begins: a number, an
// identifier, or a parenthesized group with an optional call name.
func leftOperandStart(s string, op int) int {
	i := op
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	if i > 0 && s[i-1] == ')' {
		depth := 0
		for i > 0 {
			i--
			switch s[i] {
			case ')':
				depth++
			case '(':
				depth--
			}
			if depth == 0 {
				break
			}
		}
	}
	for i > 0 && isOperandChar(s[i-1]) {
		i--
	}
	return i
}

// rightOperandEnd finds where the exponent operand ends, allowing unary
// signs and a trailing call or parenthesized group.
func rightOperandEnd(s string, op int) int {
	i := op
	for i < len(s) && s[i] == ' ' {
		i++
	}
	for i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
		for i < len(s) && s[i] == ' ' {
			i++
		}
	}
	for i < len(s) && isOperandChar(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '(' {
		depth := 0
		for i < len(s) {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			i++
			if depth == 0 {
				break
			}
		}
	}
	return i
}

func isOperandChar(c byte) bool {
	return c == '.' || c == '_' ||
		('0' <= c && c <= '9') ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z')
}

func asFloat(v starlark.Value) (float64, bool) {
	switch n := v.(type) {
	case starlark.Int:
		f, _ := starlark.AsFloat(n)
		return f, true
	case starlark.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
