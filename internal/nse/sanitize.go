package nse

import "strings"

// Sanitize escapes every byte of s that is not tab/LF/CR and not in the
// printable ASCII range [0x20, 0x7E] as an uppercase \xHH sequence (§4.7
// "Output Sanitizer"), so the result is safe to embed as text content in
// an XML document.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	const hexDigits = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x09 || c == 0x0A || c == 0x0D || (c >= 0x20 && c <= 0x7E) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(`\x`)
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}
