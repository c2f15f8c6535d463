package generator

import "strings"

const (
	openTag  = "<svg"
	closeTag = "</svg>"
)

// TrimSVG drops text before the first "<svg" and after the last "</svg>".
// Interior content is left untouched. When there is no closing tag and the
// opening tag is self-closing, text after that tag is dropped instead.
// Input without "<svg" is returned unchanged.
func TrimSVG(s string) string {
	start := strings.Index(s, openTag)
	if start < 0 {
		return s
	}
	s = s[start:]

	if end := strings.LastIndex(s, closeTag); end >= 0 {
		return s[:end+len(closeTag)]
	}
	if gt := strings.IndexByte(s, '>'); gt > 0 && s[gt-1] == '/' {
		return s[:gt+1]
	}
	return s
}
