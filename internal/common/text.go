package common

import "unicode/utf8"

// TruncateUTF8 把 s 截到不超过 maxBytes 字节
// 截断点落在多字节字符中间时向前回退到 rune 边界，保证结果是合法 UTF-8
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
