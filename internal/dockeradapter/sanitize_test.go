package dockeradapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeOutputStripsControlCharsAndReplacementRune(t *testing.T) {
	input := []byte("hello\x07world\n�tab\there\r\n")
	out := SanitizeOutput(input)

	for _, r := range out {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		assert.False(t, r < 0x20, "unexpected control char in output")
	}
	assert.False(t, strings.ContainsRune(out, utf8.RuneError))
	assert.Contains(t, out, "helloworld")
	assert.Contains(t, out, "tab\there")
}

func TestNormalizeScriptReplacesAllCarriageReturns(t *testing.T) {
	out := NormalizeScript("echo ok\r\nexit 0\r")
	assert.NotContains(t, out, "\r")
	assert.Equal(t, "echo ok\n\nexit 0\n", out)
}

func TestFormatEnvironmentUnquotesJSONStrings(t *testing.T) {
	env := map[string]string{
		"PLAIN":   "value",
		"QUOTED":  "\"quoted-value\"",
		"NUMERIC": "42",
	}
	out := FormatEnvironment(env)

	assert.Contains(t, out, "PLAIN=value")
	assert.Contains(t, out, "QUOTED=quoted-value")
	assert.Contains(t, out, "NUMERIC=42")
}
