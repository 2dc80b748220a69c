package reasoning

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const calculatorSchema = `{
	"type": "object",
	"properties": {
		"expression": {
			"type": "string",
			"description": "Arithmetic expression, e.g. \"(2 + 3) * 4 ^ 2\"."
		}
	},
	"required": ["expression"]
}`

// Calculator builds a deterministic arithmetic tool so the model never does
// mental math.
func Calculator() engine.Tool {
	return engine.Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression with + - * / % ^ and parentheses.",
		SchemaJSON:  calculatorSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			expr, _ := args["expression"].(string)
			value, err := evaluate(expr)
			if err != nil {
				return nil, err
			}
			return formatNumber(value), nil
		},
	}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type token struct {
	kind  byte // 'n' number, 'o' operator, '(' or ')'
	value float64
	op    byte
}

// evaluate parses and computes an infix expression via shunting-yard.
func evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty expression")
	}

	var output []token
	var ops []token

	precedence := func(op byte) int {
		switch op {
		case '+', '-':
			return 1
		case '*', '/', '%':
			return 2
		case '^':
			return 3
		case 'u': // unary minus
			return 4
		}
		return 0
	}
	rightAssoc := func(op byte) bool { return op == '^' || op == 'u' }

	for _, t := range tokens {
		switch t.kind {
		case 'n':
			output = append(output, t)
		case 'o':
			for len(ops) > 0 && ops[len(ops)-1].kind == 'o' {
				top := ops[len(ops)-1]
				if precedence(top.op) > precedence(t.op) ||
					(precedence(top.op) == precedence(t.op) && !rightAssoc(t.op)) {
					output = append(output, top)
					ops = ops[:len(ops)-1]
					continue
				}
				break
			}
			ops = append(ops, t)
		case '(':
			ops = append(ops, t)
		case ')':
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.kind == '(' {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return 0, fmt.Errorf("unbalanced parentheses")
			}
		}
	}
	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.kind == '(' {
			return 0, fmt.Errorf("unbalanced parentheses")
		}
		output = append(output, top)
	}

	var stack []float64
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, t := range output {
		if t.kind == 'n' {
			stack = append(stack, t.value)
			continue
		}
		if t.op == 'u' {
			v, ok := pop()
			if !ok {
				return 0, fmt.Errorf("malformed expression")
			}
			stack = append(stack, -v)
			continue
		}
		b, okB := pop()
		a, okA := pop()
		if !okA || !okB {
			return 0, fmt.Errorf("malformed expression")
		}
		switch t.op {
		case '+':
			stack = append(stack, a+b)
		case '-':
			stack = append(stack, a-b)
		case '*':
			stack = append(stack, a*b)
		case '/':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			stack = append(stack, a/b)
		case '%':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			stack = append(stack, math.Mod(a, b))
		case '^':
			stack = append(stack, math.Pow(a, b))
		}
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	result := stack[0]
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return result, nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expr[i:j])
			}
			tokens = append(tokens, token{kind: 'n', value: v})
			i = j
		case strings.ContainsRune("+-*/%^", rune(c)):
			op := c
			// A minus at the start or after an operator or '(' is unary.
			if c == '-' && (len(tokens) == 0 || tokens[len(tokens)-1].kind == 'o' || tokens[len(tokens)-1].kind == '(') {
				op = 'u'
			}
			tokens = append(tokens, token{kind: 'o', op: op})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: '('})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: ')'})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return tokens, nil
}
