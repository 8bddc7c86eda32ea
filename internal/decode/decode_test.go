package decode

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestAppend(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"multibyte", []byte("héllo wörld"), "héllo wörld"},
		{"invalid byte", []byte{'a', 0xff, 'b'}, "a�b"},
		{"truncated sequence", []byte{'x', 0xe2, 0x82}, "x��"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Append(nil, tt.raw)
			assert.True(t, utf8.Valid(got))
			assert.LessOrEqual(t, len(got), MaxExpansion*len(tt.raw))
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.want, String(tt.raw))
		})
	}
}

func TestAppendFoldMatchesToLower(t *testing.T) {
	inputs := []string{
		"Hello WORLD",
		"ÄÖÜ straße ΣΊΣΥΦΟΣ",
		"mixed 123 !@# CASE",
		"",
		"ǅ title-case",
	}
	for _, in := range inputs {
		assert.Equal(t, strings.ToLower(in), string(AppendFold(nil, []byte(in))), in)
		assert.Equal(t, strings.ToLower(in), FoldString(in), in)
	}
}

func TestAppendFoldReusesDst(t *testing.T) {
	buf := make([]byte, 0, 64)
	out := AppendFold(buf, []byte("ABC"))
	assert.Equal(t, "abc", string(out))
	assert.Equal(t, 64, cap(out))
}
