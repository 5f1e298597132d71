package fetcher

import (
	"path"
	"strings"
	"unicode/utf8"
)

// PlaceholderName is used when an entry path has no usable final segment.
const PlaceholderName = "Unknown Mod"

// FileName resolves the flat destination name for an entry path.
func FileName(entryPath string) string {
	if !utf8.ValidString(entryPath) {
		return PlaceholderName
	}
	p := strings.ReplaceAll(entryPath, "\\", "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return PlaceholderName
	}
	name := path.Base(p)
	switch name {
	case "", ".", "..", "/":
		return PlaceholderName
	}
	return name
}
