package constants

import "strings"

// FileFormat categorizes an input document by how it must be normalized.
type FileFormat string

const (
	PDF   FileFormat = "PDF"
	IMAGE FileFormat = "IMAGE"
)

// AllowedExtensions holds the default allowed file extensions for document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its normalization format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) FileFormat {
	e := NormalizeExt(ext)
	if _, ok := AllowedExtensions[e]; !ok {
		return ""
	}
	if e == "pdf" {
		return PDF
	}
	return IMAGE
}
