package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"maps"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is an email serialized for SMTP submission.
type Message struct {
	ID   string   // Message-ID without angle brackets
	From string   // Envelope sender (bare address)
	To   []string // Envelope recipients (bare addresses)
	Data []byte   // RFC 5322 headers and body
}

// part is one MIME entity: headers plus already-encoded body.
type part struct {
	header textproto.MIMEHeader
	body   []byte
}

// Build serializes e as a MIME message.
//
// Layout, outermost first: multipart/mixed when file attachments exist,
// multipart/related when inline images exist, multipart/alternative when
// a plain text body exists, with text/html as the innermost body.
func Build(e *Email, now time.Time) (*Message, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", e.From, err)
	}
	to := make([]string, 0, len(e.To))
	for _, addr := range e.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrRecipientRejected, addr, err)
		}
		to = append(to, parsed.Address)
	}

	root, err := buildBody(e)
	if err != nil {
		return nil, err
	}

	id := e.MessageID
	if id == "" {
		id = NewMessageID(from.Address)
	}

	var buf bytes.Buffer
	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", strings.Join(e.To, ", "))
	if e.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", e.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", "<"+id+">")
	writeHeader(&buf, "MIME-Version", "1.0")
	for _, k := range slices.Sorted(maps.Keys(e.Headers)) {
		writeHeader(&buf, textproto.CanonicalMIMEHeaderKey(k), e.Headers[k])
	}
	for _, k := range slices.Sorted(maps.Keys(root.header)) {
		writeHeader(&buf, k, root.header.Get(k))
	}
	buf.WriteString("\r\n")
	buf.Write(root.body)

	return &Message{
		ID:   id,
		From: from.Address,
		To:   to,
		Data: buf.Bytes(),
	}, nil
}

func buildBody(e *Email) (part, error) {
	body, err := textPart("text/html", e.HTML)
	if err != nil {
		return part{}, err
	}

	if e.Text != "" {
		plain, err := textPart("text/plain", e.Text)
		if err != nil {
			return part{}, err
		}
		body, err = multipartOf("alternative", plain, body)
		if err != nil {
			return part{}, err
		}
	}

	inline, regular := e.split()

	if len(inline) > 0 {
		parts := []part{body}
		for _, a := range inline {
			parts = append(parts, attachmentPart(a))
		}
		body, err = multipartOf("related", parts...)
		if err != nil {
			return part{}, err
		}
	}

	if len(regular) > 0 {
		parts := []part{body}
		for _, a := range regular {
			parts = append(parts, attachmentPart(a))
		}
		body, err = multipartOf("mixed", parts...)
		if err != nil {
			return part{}, err
		}
	}

	return body, nil
}

func textPart(contentType, content string) (part, error) {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(content)); err != nil {
		return part{}, fmt.Errorf("mailer: encode %s: %w", contentType, err)
	}
	if err := w.Close(); err != nil {
		return part{}, fmt.Errorf("mailer: encode %s: %w", contentType, err)
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType+"; charset=utf-8")
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	return part{header: h, body: buf.Bytes()}, nil
}

func attachmentPart(a Attachment) part {
	contentType := a.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(a.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "attachment"
	if a.Inline() {
		disposition = "inline"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": a.Filename}))
	if a.Inline() {
		h.Set("Content-ID", "<"+a.ContentID+">")
	}

	return part{header: h, body: wrapBase64(a.Content)}
}

func multipartOf(subtype string, parts ...part) (part, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		pw, err := w.CreatePart(p.header)
		if err != nil {
			return part{}, fmt.Errorf("mailer: create %s part: %w", subtype, err)
		}
		if _, err := pw.Write(p.body); err != nil {
			return part{}, fmt.Errorf("mailer: write %s part: %w", subtype, err)
		}
	}
	if err := w.Close(); err != nil {
		return part{}, fmt.Errorf("mailer: close %s: %w", subtype, err)
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", mime.FormatMediaType("multipart/"+subtype, map[string]string{"boundary": w.Boundary()}))
	return part{header: h, body: buf.Bytes()}, nil
}

// wrapBase64 encodes data in 76-column lines as RFC 2045 requires.
func wrapBase64(data []byte) []byte {
	const lineLen = 76

	encoded := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	buf.Grow(len(encoded) + len(encoded)/lineLen*2 + 2)
	for len(encoded) > lineLen {
		buf.WriteString(encoded[:lineLen])
		buf.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// writeHeader drops CR and LF from value to prevent header injection.
func writeHeader(buf *bytes.Buffer, key, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// NewMessageID returns a unique Message-ID (without angle brackets)
// in the domain of the from address.
func NewMessageID(from string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return uuid.NewString() + "@" + domain
}
