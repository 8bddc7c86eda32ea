package decode

import (
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
)

// MaxExpansion is the worst-case number of output bytes per input byte.
// Every invalid byte decodes to U+FFFD, which is three bytes long.
const MaxExpansion = 3

// Valid reports whether raw decodes without substitution
func Valid(raw []byte) bool {
	return utf8.Valid(raw)
}

// Append appends the lossy UTF-8 decoding of raw to dst.
// Invalid sequences are replaced with U+FFFD instead of failing.
func Append(dst, raw []byte) []byte {
	if utf8.Valid(raw) {
		return append(dst, raw...)
	}
	decoded, err := xunicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		// The UTF-8 decoder substitutes rather than failing, keep a
		// rune-by-rune fallback so callers never see an error.
		return appendRunes(dst, raw)
	}
	return append(dst, decoded...)
}

// String returns the lossy decoding of raw
func String(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return string(Append(nil, raw))
}

func appendRunes(dst, raw []byte) []byte {
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		dst = utf8.AppendRune(dst, r)
		raw = raw[size:]
	}
	return dst
}

// AppendFold appends the lower-cased form of text to dst.
// Both predicate paths fold through this function so that they agree on
// every input; text is expected to be valid UTF-8 (see Append).
func AppendFold(dst, text []byte) []byte {
	for i := 0; i < len(text); {
		c := text[i]
		if c < utf8.RuneSelf {
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			dst = append(dst, c)
			i++
			continue
		}
		r, size := utf8.DecodeRune(text[i:])
		dst = utf8.AppendRune(dst, unicode.ToLower(r))
		i += size
	}
	return dst
}

// FoldString is AppendFold for strings
func FoldString(s string) string {
	return string(AppendFold(make([]byte, 0, len(s)), []byte(s)))
}
