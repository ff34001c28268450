package mailer

import (
	"errors"
	"fmt"
)

// Reason classifies why a single delivery failed.
type Reason string

// Failure reasons surfaced per recipient.
const (
	ReasonNone                  Reason = ""
	ReasonAuthenticationFailed  Reason = "authentication_failed"
	ReasonRecipientRejected     Reason = "recipient_rejected"
	ReasonTransportDisconnected Reason = "transport_disconnected"
	ReasonTransportError        Reason = "transport_error"
	ReasonUnexpectedError       Reason = "unexpected_error"
)

// Classify maps a send error to a Reason.
// Errors not wrapped by a transport sentinel are unexpected.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrAuthentication):
		return ReasonAuthenticationFailed
	case errors.Is(err, ErrRecipientRejected):
		return ReasonRecipientRejected
	case errors.Is(err, ErrDisconnected):
		return ReasonTransportDisconnected
	case errors.Is(err, ErrTransport):
		return ReasonTransportError
	default:
		return ReasonUnexpectedError
	}
}

// Describe builds the human-readable message shown next to a failed recipient.
func Describe(reason Reason, err error) string {
	var prefix string
	switch reason {
	case ReasonAuthenticationFailed:
		prefix = "Authentication failed: check the sender email and app password"
	case ReasonRecipientRejected:
		prefix = "Recipient address rejected by the server"
	case ReasonTransportDisconnected:
		prefix = "Server closed the connection unexpectedly"
	case ReasonTransportError:
		prefix = "Mail server error"
	default:
		prefix = "Unexpected error"
	}
	if err == nil {
		return prefix
	}
	return fmt.Sprintf("%s (%v)", prefix, err)
}
