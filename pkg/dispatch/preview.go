package dispatch

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// Preview is a rendered message shown before sending.
type Preview struct {
	Subject string
	HTML    string
	Text    string
}

// Preview renders spec for a single record without contacting the
// transport. The inline logo is embedded as a data URL so the HTML
// displays in a browser.
func (d *Dispatcher) Preview(spec templates.Spec, rec recipients.Record, sender Sender) (*Preview, error) {
	brand := d.branding.Profile(spec.Branding)
	logo := logoAttachment(brand.Logo)

	senderEmail := sender.Email
	if senderEmail == "" {
		senderEmail = brand.Email
	}
	fields := batchFields(spec, brand, sender, senderEmail, d.now(), logo != nil).forRecord(rec)

	html, text, err := d.renderer.Render(spec, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	subject, err := mailer.ExecuteSubject(spec.Subject, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	if logo != nil {
		dataURL := "data:" + logo.ContentType + ";base64," + base64.StdEncoding.EncodeToString(logo.Content)
		html = strings.ReplaceAll(html, "cid:"+logo.ContentID, dataURL)
	}
	return &Preview{Subject: subject, HTML: html, Text: text}, nil
}
