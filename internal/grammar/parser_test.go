package grammar

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sexpr renders nodes as strings so the tree shape is easy to assert on.
type sexpr struct{}

func (sexpr) Number(v int32) string             { return fmt.Sprint(v) }
func (sexpr) QuotedString(lexeme string) string { return "s" + lexeme }
func (sexpr) Boolean(v bool) string             { return fmt.Sprint(v) }
func (sexpr) Identifier(name string) string     { return "$" + name }
func (sexpr) Call(name string, args []string) string {
	return name + "(" + strings.Join(args, " ") + ")"
}

func parseAll(t *testing.T, src string) ([]string, error) {
	t.Helper()
	var out []string
	err := ParseString[string](src, sexpr{}, func(s string) { out = append(out, s) })
	return out, err
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"x = 2 + 3; info(x)", []string{"=($x +(2 3))", "info($x)"}},
		{"a = b = 1", []string{"=($a =($b 1))"}},
		{"1 - 2 + 3", []string{"+(-(1 2) 3)"}},
		{"x = -5", []string{"=($x -5)"}},
		{"x = -y", []string{"=($x -(0 $y))"}},
		{"(1 + 2) - 3", []string{"-(+(1 2) 3)"}},
		{"help()", []string{"help()"}},
		{`setenv("a", "b", 3)`, []string{`setenv(s"a" s"b" 3)`}},
		{"uboot_env.count = 0x100", []string{"=($uboot_env.count 256)"}},
		{"n = 010", []string{"=($n 8)"}},
		{"flag = true; other = false", []string{"=($flag true)", "=($other false)"}},
		{"info(1,\n  2)", []string{"info(1 2)"}},
		{"# comment only\n\n;;\n", nil},
		{"x = 1 # trailing\ny = 2", []string{"=($x 1)", "=($y 2)"}},
		{"big = 4294967295", []string{"=($big -1)"}},
		{"min = -2147483648", []string{"=($min -2147483648)"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := parseAll(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		msg  string
	}{
		{"x = ", 1, "unexpected end of input"},
		{"x = 1\ny = )", 2, "unexpected ')'"},
		{"info(1", 1, "unexpected end of input"},
		{"a b", 1, "unexpected identifier b"},
		{"\n\nx = \"open", 3, "unterminated string"},
		{"x = @", 1, "unexpected character '@'"},
		{"x = 0x", 1, `invalid number "0x"`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := parseAll(t, tt.src)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.line, se.Line)
			assert.Contains(t, se.Msg, tt.msg)
			assert.True(t, strings.HasPrefix(se.Error(), fmt.Sprintf("Error on line %d: ", tt.line)))
		})
	}
}

func TestParseEmitsBeforeError(t *testing.T) {
	got, err := parseAll(t, "a = 1\nb = (")
	require.Error(t, err)
	assert.Equal(t, []string{"=($a 1)"}, got)
}
