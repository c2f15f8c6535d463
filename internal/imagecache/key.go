package imagecache

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	MinKeyLength = 3
	MaxKeyLength = 100

	// FileExt is appended to a key to form the stored file name and the public URL.
	FileExt = ".svg"
)

// Sentinel errors for key derivation and lookups.
var (
	ErrInvalidName = errors.New("imagecache: name is not valid percent-encoded UTF-8")
	ErrKeyTooShort = errors.New("imagecache: key is too short")
	ErrKeyTooLong  = errors.New("imagecache: key is too long")
	ErrNotFound    = errors.New("imagecache: entry not found")
)

// Key derives the cache key for a raw, possibly percent-encoded, name.
//
// The name is decoded first, then every character outside [A-Za-z0-9_-] is
// replaced with '_'. Length is counted in UTF-16 code units so that a character
// outside the BMP becomes two underscores.
func Key(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if !utf8.ValidString(decoded) {
		return "", ErrInvalidName
	}
	key := sanitize(decoded)
	if err := checkLength(key); err != nil {
		return "", err
	}
	return key, nil
}

// ValidKey reports whether s is already a well-formed key.
func ValidKey(s string) bool {
	if checkLength(s) != nil {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !allowed(rune(s[i])) {
			return false
		}
	}
	return true
}

// FileName is the stored name for key.
func FileName(key string) string {
	return key + FileExt
}

// Location is the canonical public URL path for key.
func Location(key string) string {
	return "/" + FileName(key)
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
			continue
		}
		n := utf16.RuneLen(r)
		if n < 1 {
			n = 1
		}
		b.WriteString(strings.Repeat("_", n))
	}
	return b.String()
}

func checkLength(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	}
	return nil
}

func allowed(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}
