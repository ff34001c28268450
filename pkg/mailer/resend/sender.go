package resend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Transport implements mailer.Transport using the Resend HTTP API.
type Transport struct {
	config Config
}

// New creates a Resend transport.
func New(cfg Config) *Transport {
	return &Transport{config: cfg}
}

// Open implements mailer.Transport. The API is stateless, so Open only
// builds a client bound to the resolved key and the sender address.
func (t *Transport) Open(ctx context.Context, creds mailer.Credentials) (mailer.Session, error) {
	key := t.config.APIKey
	if key == "" {
		key = creds.Password
	}
	if key == "" {
		return nil, fmt.Errorf("resend: %w: no api key", mailer.ErrAuthentication)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := resend.NewClient(key)
	if t.config.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(t.config.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend: %w: base url: %v", mailer.ErrTransport, err)
		}
		client.BaseURL = base
	}

	return &Session{
		client: client,
		from:   mailer.Recipient(t.config.SenderName, creds.Email),
	}, nil
}

// Session sends messages through one Resend client.
type Session struct {
	client *resend.Client
	from   string
}

// Send implements mailer.Sender. On success email.MessageID holds the
// id Resend assigned.
func (s *Session) Send(ctx context.Context, email *mailer.Email) error {
	if err := email.Validate(); err != nil {
		return err
	}

	from := email.From
	if from == "" {
		from = s.from
	}

	headers := make(map[string]string, len(email.Headers)+1)
	for k, v := range email.Headers {
		headers[k] = v
	}
	if email.MessageID != "" {
		headers["Message-ID"] = "<" + email.MessageID + ">"
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Headers: headers,
	}
	if len(email.Attachments) > 0 {
		req.Attachments = convertAttachments(email.Attachments)
	}

	resp, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return classify(err)
	}
	if resp != nil && resp.Id != "" {
		email.MessageID = resp.Id
	}
	return nil
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	return "resend"
}

// Close implements mailer.Session.
func (s *Session) Close() error {
	return nil
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
			ContentId:   a.ContentID,
		}
	}
	return result
}

// classify maps API errors onto the mailer delivery sentinels.
// The client reports failures as text carrying the API message.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("resend: %w: %w", mailer.ErrDisconnected, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return fmt.Errorf("resend: %w: %w", mailer.ErrAuthentication, err)
	case strings.Contains(msg, "invalid `to`"), strings.Contains(msg, "invalid to"), strings.Contains(msg, "recipient"):
		return fmt.Errorf("resend: %w: %w", mailer.ErrRecipientRejected, err)
	default:
		return fmt.Errorf("resend: %w: %w", mailer.ErrTransport, err)
	}
}
