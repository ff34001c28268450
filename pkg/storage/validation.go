package storage

import (
	"fmt"
	"maps"
	"slices"
)

// FileValidationError represents a file validation failure.
type FileValidationError struct {
	Details map[string]any // Error-specific data
	Field   string         // File name
	Code    string         // Error code (e.g., "file_too_large", "invalid_mime", "empty_file")
	Message string         // Human-readable message
}

// Error implements the error interface.
func (e *FileValidationError) Error() string {
	return e.Message
}

// Error codes for FileValidationError.
const (
	ErrCodeFileTooLarge = "file_too_large"
	ErrCodeFileTooSmall = "file_too_small"
	ErrCodeInvalidMIME  = "invalid_mime"
	ErrCodeEmptyFile    = "empty_file"
)

// ValidationRule defines a validation check for loaded files.
type ValidationRule interface {
	// Validate checks the file and returns an error if validation fails.
	Validate(info FileInfo) error
}

// Validate runs all validation rules against a file.
// Returns the first validation error encountered, or nil if all pass.
// ContentType should be detected from magic bytes for accuracy.
func Validate(info FileInfo, rules ...ValidationRule) error {
	for _, rule := range rules {
		if err := rule.Validate(info); err != nil {
			return err
		}
	}
	return nil
}

// maxSizeRule validates that file size is within limits.
type maxSizeRule struct {
	maxBytes int64
}

// MaxSize returns a rule that rejects files larger than the specified size.
func MaxSize(bytes int64) ValidationRule {
	return &maxSizeRule{maxBytes: bytes}
}

// Validate implements ValidationRule.
func (r *maxSizeRule) Validate(info FileInfo) error {
	if info.Size > r.maxBytes {
		return &FileValidationError{
			Field:   info.Name,
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", info.Size, r.maxBytes),
			Details: map[string]any{
				"limit": r.maxBytes,
				"got":   info.Size,
			},
		}
	}
	return nil
}

// minSizeRule validates that file size meets minimum.
type minSizeRule struct {
	minBytes int64
}

// MinSize returns a rule that rejects files smaller than the specified size.
func MinSize(bytes int64) ValidationRule {
	return &minSizeRule{minBytes: bytes}
}

// Validate implements ValidationRule.
func (r *minSizeRule) Validate(info FileInfo) error {
	if info.Size < r.minBytes {
		return &FileValidationError{
			Field:   info.Name,
			Code:    ErrCodeFileTooSmall,
			Message: fmt.Sprintf("file size %d is below minimum of %d bytes", info.Size, r.minBytes),
			Details: map[string]any{
				"minimum": r.minBytes,
				"got":     info.Size,
			},
		}
	}
	return nil
}

// notEmptyRule validates that the file is not empty.
type notEmptyRule struct{}

// NotEmpty returns a rule that rejects empty files.
func NotEmpty() ValidationRule {
	return &notEmptyRule{}
}

// Validate implements ValidationRule.
func (r *notEmptyRule) Validate(info FileInfo) error {
	if info.Size == 0 {
		return &FileValidationError{
			Field:   info.Name,
			Code:    ErrCodeEmptyFile,
			Message: "file is empty",
			Details: map[string]any{},
		}
	}
	return nil
}

// allowedTypesRule validates MIME type against allowed patterns.
type allowedTypesRule struct {
	patterns []string
}

// AllowedTypes returns a rule that only accepts files matching the given MIME patterns.
// Supports wildcards like "image/*".
func AllowedTypes(patterns ...string) ValidationRule {
	return &allowedTypesRule{patterns: patterns}
}

// Validate implements ValidationRule.
func (r *allowedTypesRule) Validate(info FileInfo) error {
	if !matchesMIME(info.ContentType, r.patterns) {
		return &FileValidationError{
			Field:   info.Name,
			Code:    ErrCodeInvalidMIME,
			Message: fmt.Sprintf("file type %q is not allowed", info.ContentType),
			Details: map[string]any{
				"type":    info.ContentType,
				"allowed": r.patterns,
			},
		}
	}
	return nil
}

// ImageOnly returns a rule that only accepts image files.
// Equivalent to AllowedTypes("image/*").
func ImageOnly() ValidationRule {
	return AllowedTypes("image/*")
}

// DocumentsOnly returns a rule that only accepts document files.
// Includes PDF, Word, Excel, PowerPoint, text, and CSV files.
func DocumentsOnly() ValidationRule {
	return AllowedTypes(slices.Sorted(maps.Keys(documentTypes))...)
}
