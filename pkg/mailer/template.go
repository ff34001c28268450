package mailer

import (
	"bytes"
	"fmt"
	"strings"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

// Template is a markdown body with its frontmatter metadata.
type Template struct {
	Metadata map[string]any
	Body     string
}

var frontmatterDelim = []byte("---")

// ParseTemplate splits content into YAML frontmatter and markdown body.
// Content without a leading "---" is all body.
func ParseTemplate(content []byte) (*Template, error) {
	rest, ok := bytes.CutPrefix(content, frontmatterDelim)
	if !ok {
		return &Template{Metadata: map[string]any{}, Body: string(content)}, nil
	}

	rest = bytes.TrimLeft(rest, "\r\n")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	head, body, found := bytes.Cut(rest, frontmatterDelim)
	if !found {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}
	// One line break after the closing delimiter belongs to it.
	if b, ok := bytes.CutPrefix(body, []byte("\r\n")); ok {
		body = b
	} else if b, ok := bytes.CutPrefix(body, []byte("\n")); ok {
		body = b
	}

	metadata := map[string]any{}
	if len(bytes.TrimSpace(head)) > 0 {
		if err := yaml.Unmarshal(head, &metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return &Template{Metadata: metadata, Body: string(body)}, nil
}

// ExecuteSubject interpolates data into a one-line subject template.
// Line breaks in the result are collapsed so the value is safe as a header.
func ExecuteSubject(subject string, data any) (string, error) {
	tmpl, err := texttemplate.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return "", fmt.Errorf("%w: parse subject: %v", ErrRenderFailed, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: execute subject: %v", ErrRenderFailed, err)
	}

	return strings.Join(strings.Fields(buf.String()), " "), nil
}

// markdownPunct is the ASCII punctuation CommonMark allows to be
// backslash-escaped.
const markdownPunct = "\\`*_{}[]()<>#+-.!|~&\"'=:;$%@^/?,"

// EscapeMarkdown quotes s so markdown renders it as literal text on one
// line. Line breaks become spaces.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n':
			b.WriteByte(' ')
		case r < 0x80 && strings.ContainsRune(markdownPunct, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
