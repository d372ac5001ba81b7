package host

import (
	"fmt"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type mapResolver map[string]int64

func (r mapResolver) resolveIdentifier(s string) (int64, error) {
	if v, ok := r[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func TestExprParser(t *testing.T) {
	r := mapResolver{"va": 0x0a, "pc": 0x202, "dt": 3}

	tests := []struct {
		expr     string
		hexMode  bool
		expected int64
		err      bool
	}{
		{expr: "12", expected: 12},
		{expr: "$1f", expected: 0x1f},
		{expr: "0x200", expected: 0x200},
		{expr: "0b101", expected: 5},
		{expr: "0d99", expected: 99},
		{expr: "'A'", expected: 65},
		{expr: "1+2*3", expected: 7},
		{expr: "(1+2)*3", expected: 9},
		{expr: "10-4-3", expected: 3},
		{expr: "1<<4|3", expected: 0x13},
		{expr: "-1", expected: -1},
		{expr: "~0 & $ff", expected: 0xff},
		{expr: "pc+2", expected: 0x204},
		{expr: "va ^ 3", expected: 9},
		{expr: "10", hexMode: true, expected: 0x10},
		{expr: "ff", hexMode: true, expected: 0xff},
		{expr: "dt + 1", hexMode: true, expected: 4},
		{expr: "", err: true},
		{expr: "1 +", err: true},
		{expr: "(1", err: true},
		{expr: "1)", err: true},
		{expr: "12abc", err: true},
		{expr: "7 % 0", err: true},
		{expr: "missing", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p := newExprParser()
			p.hexMode = tt.hexMode

			v, err := p.Parse(tt.expr, r)
			if tt.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}
