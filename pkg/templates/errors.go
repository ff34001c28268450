package templates

import "errors"

var (
	// ErrUnknownKind indicates a template kind outside the catalog.
	ErrUnknownKind = errors.New("templates: unknown template kind")

	// ErrInvalidBranding indicates a branding file that cannot be parsed.
	ErrInvalidBranding = errors.New("templates: invalid branding")
)
