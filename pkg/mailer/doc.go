// Package mailer holds the message model shared by every transport and the
// template renderer that produces message bodies.
//
// # Architecture
//
//   - Email and Attachment: a fully prepared message. Attachments with a
//     ContentID are sent inline and referenced from HTML as "cid:<id>".
//   - Transport and Session: a Transport opens an authenticated Session;
//     a Session sends one or more messages and is then closed.
//   - Renderer: converts markdown bodies with YAML frontmatter to HTML
//     wrapped by an html/template layout.
//   - Build: serializes an Email into RFC 5322 bytes for SMTP submission.
//
// # Templates
//
// Bodies are markdown files with optional YAML frontmatter:
//
//	---
//	Preheader: Your interview slot is confirmed
//	---
//
//	Dear {{.name}},
//
//	You have been shortlisted for **{{.role}}**.
//
//	[!button|Visit our website]({{.website}})
//
// The layout receives .Content (body HTML), .Metadata (frontmatter) and
// .Data (the data passed to Render).
//
//	r := mailer.NewRenderer(templates.FS, mailer.WithButtonColor("#c2185b"))
//	res, err := r.Render("hr.html", "interview.md", fields)
//
// # Delivery errors
//
// Transports wrap failures with ErrAuthentication, ErrRecipientRejected,
// ErrDisconnected or ErrTransport. Classify maps an error to a Reason and
// Describe turns a Reason into the message reported for a recipient.
package mailer
