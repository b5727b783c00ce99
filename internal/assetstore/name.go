package assetstore

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxBaseNameRunes = 120

// SanitizeFilename strips directory components and unsafe characters, collapses
// whitespace into single hyphens and lower-cases the extension.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "/" || name == "." {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == 0:
			continue
		case unicode.IsSpace(r):
			r = ' '
		case unicode.IsControl(r):
			continue
		case strings.ContainsRune(`:*?"<>|`, r):
			continue
		}
		b.WriteRune(r)
	}
	name = strings.Join(strings.Fields(b.String()), "-")
	name = strings.TrimLeft(name, ".-")

	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	base = strings.Trim(base, ".-")
	if utf8.RuneCountInString(base) > maxBaseNameRunes {
		base = string([]rune(base)[:maxBaseNameRunes])
	}
	if base == "" {
		base = "file"
	}
	return base + ext
}

// Ext returns the lower-case extension of a filename or address.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

func splitName(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
