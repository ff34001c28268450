package mailer

import "errors"

var (
	// ErrNoRecipient indicates no recipient was specified.
	ErrNoRecipient = errors.New("email must have at least one recipient")

	// ErrNoSubject indicates no subject was provided.
	ErrNoSubject = errors.New("email must have a subject")

	// ErrNoContent indicates no HTML content was provided.
	ErrNoContent = errors.New("email must have HTML content")

	// ErrTemplateNotFound indicates the template file was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrLayoutNotFound indicates the layout file was not found.
	ErrLayoutNotFound = errors.New("layout not found")

	// ErrRenderFailed indicates template rendering failed.
	ErrRenderFailed = errors.New("failed to render template")

	// ErrInvalidFrontmatter indicates invalid YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")
)

// Delivery failures. Transports wrap the underlying error with one of these
// so callers can classify a failed send without knowing the transport.
var (
	// ErrAuthentication indicates the server rejected the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRecipientRejected indicates the server refused the recipient address.
	ErrRecipientRejected = errors.New("recipient rejected")

	// ErrDisconnected indicates the connection dropped mid-conversation.
	ErrDisconnected = errors.New("server disconnected")

	// ErrTransport indicates any other protocol or network failure.
	ErrTransport = errors.New("transport error")
)
