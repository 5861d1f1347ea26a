package systemd

import (
	"strings"
)

const hexDigits = "0123456789abcdef"

// EscapeObjectPath turns a unit name into a D-Bus object path element.
// Bytes other than ASCII letters and digits, and a leading digit, are
// written as _xx, the empty name becomes "_".
func EscapeObjectPath(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAlpha(c) || (i > 0 && isDigit(c)) {
			b.WriteByte(c)
			continue
		}

		b.WriteByte('_')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}

	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
