package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MIME type constants.
const (
	MIMEOctetStream    = "application/octet-stream"
	mimeDetectionBytes = 512 // http.DetectContentType requires up to 512 bytes
)

// documentTypes contains all recognized document MIME types.
var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.ms-powerpoint":                                             {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain":      {},
	"text/csv":        {},
	"application/rtf": {},
}

// mimeExtensions maps MIME types to preferred file extensions.
var mimeExtensions = map[string]string{
	// Images
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/x-icon":  ".ico",
	"image/heic":    ".heic",
	"image/heif":    ".heif",
	"image/avif":    ".avif",
	// Documents
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-powerpoint":                                             ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/plain":      ".txt",
	"text/csv":        ".csv",
	"text/html":       ".html",
	"text/css":        ".css",
	"application/rtf": ".rtf",
	// Data
	"application/json":       ".json",
	"application/xml":        ".xml",
	"application/javascript": ".js",
	// Archives
	"application/zip":              ".zip",
	"application/gzip":             ".gz",
	"application/x-tar":            ".tar",
	"application/x-7z-compressed":  ".7z",
	"application/x-rar-compressed": ".rar",
}

// ExtFromMIME returns the file extension for a MIME type.
// Returns empty string if MIME type is unknown.
func ExtFromMIME(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// normalizeMIME extracts the base MIME type, removing parameters like charset.
// Returns the lowercase MIME type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME checks if a MIME type matches any of the allowed patterns.
// Supports wildcards like "image/*".
func matchesMIME(mimeType string, allowed []string) bool {
	mimeType = normalizeMIME(mimeType)

	for _, pattern := range allowed {
		pattern = strings.TrimSpace(strings.ToLower(pattern))

		if mimeType == pattern {
			return true
		}

		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(mimeType, prefix) {
				return true
			}
		}
	}

	return false
}

// genericTypes are sniffing results too vague to trust over the file extension.
// Office documents sniff as zip archives.
var genericTypes = map[string]struct{}{
	MIMEOctetStream:   {},
	"application/zip": {},
	"text/plain":      {},
}

// ContentType returns the MIME type of data, sniffed from its magic bytes.
// When sniffing only yields a generic type, the extension of name decides.
func ContentType(name string, data []byte) string {
	sniffed := MIMEOctetStream
	if len(data) > 0 {
		sniffed = http.DetectContentType(data[:min(len(data), mimeDetectionBytes)])
	}
	if _, generic := genericTypes[normalizeMIME(sniffed)]; !generic {
		return sniffed
	}
	if byExt := typeByExt(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return sniffed
}

// typeByExt prefers the package table over the platform's mime.types.
func typeByExt(ext string) string {
	ext = strings.ToLower(ext)
	for mimeType, e := range mimeExtensions {
		if e == ext {
			return mimeType
		}
	}
	return mime.TypeByExtension(ext)
}
