package mailer

import (
	"fmt"
	"net/mail"
)

// Recipient formats a name and email into RFC 5322 address format.
// Returns "Name <email>" if name is provided, otherwise just email.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}

// Credentials authenticate a mail-submission session.
// Password is usually an app-specific token.
type Credentials struct {
	Email    string
	Password string
}

// String hides the password so credentials are safe to pass to loggers.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:***", c.Email)
}

// Email represents a fully-prepared email message ready for sending.
type Email struct {
	Headers     map[string]string // Custom headers
	MessageID   string            // Generated when empty
	Subject     string            // Email subject
	HTML        string            // HTML body content
	Text        string            // Plain text alternative
	From        string            // Sender address, "Name <addr>" allowed
	ReplyTo     string            // Reply-to address
	To          []string          // Recipients (at least one required)
	Attachments []Attachment      // Inline images first, then file attachments
}

// Attachment represents an email attachment.
// An attachment with a ContentID is sent inline and referenced from the
// HTML body as "cid:<ContentID>".
type Attachment struct {
	Filename    string // Display name for the attachment
	ContentType string // MIME type (e.g., "application/pdf")
	ContentID   string // Content-ID for inline attachments
	Content     []byte // Raw file content
}

// Inline reports whether the attachment is referenced from the body.
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// Size returns the attachment payload size in bytes.
func (a Attachment) Size() int64 {
	return int64(len(a.Content))
}

// Validate checks the fields every transport needs.
func (e *Email) Validate() error {
	if len(e.To) == 0 || e.To[0] == "" {
		return ErrNoRecipient
	}
	if e.Subject == "" {
		return ErrNoSubject
	}
	if e.HTML == "" {
		return ErrNoContent
	}
	return nil
}

// split returns inline and regular attachments preserving their order.
func (e *Email) split() (inline, regular []Attachment) {
	for _, a := range e.Attachments {
		if a.Inline() {
			inline = append(inline, a)
			continue
		}
		regular = append(regular, a)
	}
	return inline, regular
}
