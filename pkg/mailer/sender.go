package mailer

import "context"

// Sender defines the minimal interface that email providers must implement.
// It accepts a fully-prepared Email and handles the actual delivery.
type Sender interface {
	// Send delivers an email message.
	// The Email must have To, Subject, and HTML already set.
	// Returns an error wrapping one of the delivery sentinels on failure.
	Send(ctx context.Context, email *Email) error
}

// Session is an authenticated connection able to deliver one or more messages.
type Session interface {
	Sender

	// Close ends the session. Closing an already broken session is not an error.
	Close() error
}

// Transport opens authenticated sessions.
type Transport interface {
	// Open connects and authenticates with the given credentials.
	Open(ctx context.Context, creds Credentials) (Session, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, creds Credentials) (Session, error)

// Open implements Transport.
func (f TransportFunc) Open(ctx context.Context, creds Credentials) (Session, error) {
	return f(ctx, creds)
}

// Redialer is implemented by sessions able to open a fresh session to the
// same server with the same credentials, skipping any server discovery.
type Redialer interface {
	Redial(ctx context.Context) (Session, error)
}
