package tool

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NewCalculator returns the calculator tool. It evaluates a single binary
// expression such as "12.5 * 4" (operators + - * / % ^).
func NewCalculator() *Definition {
	return &Definition{
		Name:        "calculator",
		Description: "Evaluates a binary arithmetic expression like '12 * 7'. Supported operators: + - * / % ^.",
		Parameters: ObjectSchema(map[string]string{
			"expression": "Arithmetic expression with two operands, e.g. '3.5 + 4'",
		}, "expression"),
		Execute: func(_ context.Context, args map[string]any) (any, error) {
			expr, err := StringArg(args, "expression")
			if err != nil {
				if expr, err = StringArg(args, "input"); err != nil {
					return nil, fmt.Errorf("missing argument %q", "expression")
				}
			}
			v, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		},
	}
}

// Evaluate computes "a op b".
func Evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	idx := operatorIndex(expr)
	if idx < 0 {
		return 0, fmt.Errorf("invalid expression %q: expected 'a <op> b'", expr)
	}

	a, err := strconv.ParseFloat(strings.TrimSpace(expr[:idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid left operand in %q", expr)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(expr[idx+1:]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid right operand in %q", expr)
	}

	switch expr[idx] {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case '%':
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Mod(a, b), nil
	default:
		return math.Pow(a, b), nil
	}
}

// operatorIndex finds the binary operator. A sign at index 0 belongs to the
// first operand and a sign right after an exponent marker belongs to the number.
func operatorIndex(expr string) int {
	for i := 1; i < len(expr); i++ {
		switch c := expr[i]; c {
		case '*', '/', '%', '^':
			return i
		case '+', '-':
			if p := expr[i-1]; (p == 'e' || p == 'E') && i >= 2 && isNumberByte(expr[i-2]) {
				continue
			}
			return i
		}
	}
	return -1
}

func isNumberByte(c byte) bool {
	return c >= '0' && c <= '9' || c == '.'
}
