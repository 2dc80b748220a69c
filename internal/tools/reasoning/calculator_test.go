package reasoning

import (
	"context"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 - 4 - 3", 3},
		{"2 ^ 3 ^ 2", 512}, // right-assoc
		{"-5 + 3", -2},
		{"-(2 + 3)", -5},
		{"2 * -3", -6},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2^10", 1024},
		{"  1+1  ", 2},
		{"0.1 + 0.2", 0.30000000000000004},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evaluate(tt.expr)
			if err != nil {
				t.Fatalf("evaluate(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"spaces only", "   "},
		{"division by zero", "1 / 0"},
		{"mod by zero", "1 % 0"},
		{"unbalanced open", "(1 + 2"},
		{"unbalanced close", "1 + 2)"},
		{"trailing operator", "1 +"},
		{"adjacent numbers", "1 2"},
		{"bad character", "1 + x"},
		{"bad number", "1..2 + 3"},
		{"nan result", "0 ^ -1 * 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evaluate(tt.expr); err == nil {
				t.Errorf("evaluate(%q) = nil error, want failure", tt.expr)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{-3, "-3"},
		{2.5, "2.5"},
		{1024, "1024"},
		{1e20, "1e+20"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalculatorTool(t *testing.T) {
	tool := Calculator()
	got, err := tool.Fn(context.Background(), map[string]any{"expression": "(2 + 3) * 4"})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	if got != "20" {
		t.Errorf("Fn() = %v, want 20", got)
	}

	if _, err := tool.Fn(context.Background(), map[string]any{"expression": "1/0"}); err == nil {
		t.Error("division by zero did not error")
	}
}
