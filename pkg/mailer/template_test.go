package mailer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		metadata map[string]any
		body     string
	}{
		{
			name:     "frontmatter and body",
			content:  "---\nPreheader: Interview slot\nTone: formal\n---\nDear {{.name}},\n\nWelcome.\n",
			metadata: map[string]any{"Preheader": "Interview slot", "Tone": "formal"},
			body:     "Dear {{.name}},\n\nWelcome.\n",
		},
		{
			name:     "no frontmatter",
			content:  "# Hello\n\nPlain markdown.",
			metadata: map[string]any{},
			body:     "# Hello\n\nPlain markdown.",
		},
		{
			name:     "empty frontmatter",
			content:  "---\n---\nBody content here.",
			metadata: map[string]any{},
			body:     "Body content here.",
		},
		{
			name:     "blank frontmatter",
			content:  "---\n\n---\nBody content.",
			metadata: map[string]any{},
			body:     "Body content.",
		},
		{
			name:     "windows line endings",
			content:  "---\r\nPreheader: Test\r\n---\r\nBody",
			metadata: map[string]any{"Preheader": "Test"},
			body:     "Body",
		},
		{
			name:     "empty body",
			content:  "---\nPreheader: Test\n---\n",
			metadata: map[string]any{"Preheader": "Test"},
			body:     "",
		},
		{
			name:     "empty content",
			content:  "",
			metadata: map[string]any{},
			body:     "",
		},
		{
			name:     "numeric metadata",
			content:  "---\nSlots: 3\nWeight: 0.5\n---\nBody",
			metadata: map[string]any{"Slots": 3, "Weight": 0.5},
			body:     "Body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := ParseTemplate([]byte(tt.content))
			require.NoError(t, err)
			require.Equal(t, tt.metadata, tmpl.Metadata)
			require.Equal(t, tt.body, tmpl.Body)
		})
	}
}

func TestParseTemplate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing closing delimiter", content: "---\nPreheader: Test\nBody without closing"},
		{name: "nothing after opening", content: "---"},
		{name: "invalid yaml", content: "---\nPreheader: Test\nBroken: [unclosed\n---\nBody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := ParseTemplate([]byte(tt.content))
			require.ErrorIs(t, err, ErrInvalidFrontmatter)
			require.Nil(t, tmpl)
		})
	}
}

func TestParseTemplate_NestedMetadata(t *testing.T) {
	t.Parallel()

	tmpl, err := ParseTemplate([]byte(`---
Preheader: Offer
Documents:
  - offer letter
  - policies
---
Body`))
	require.NoError(t, err)

	docs, ok := tmpl.Metadata["Documents"].([]any)
	require.True(t, ok)
	require.Equal(t, []any{"offer letter", "policies"}, docs)
}

func TestExecuteSubject(t *testing.T) {
	t.Parallel()

	got, err := ExecuteSubject("Interview Shortlisting - {{.role}} - {{.brand}}", map[string]string{
		"role":  "Data Analyst",
		"brand": "DazzloHR",
	})
	require.NoError(t, err)
	require.Equal(t, "Interview Shortlisting - Data Analyst - DazzloHR", got)
}

func TestExecuteSubject_CollapsesLineBreaks(t *testing.T) {
	t.Parallel()

	got, err := ExecuteSubject("Hello {{.name}}", map[string]string{"name": "Ann\r\nBcc: x@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Hello Ann Bcc: x@example.com", got)
}

func TestExecuteSubject_MissingField(t *testing.T) {
	t.Parallel()

	_, err := ExecuteSubject("Offer - {{.role}}", map[string]string{"name": "Ann"})
	require.ErrorIs(t, err, ErrRenderFailed)
}

func TestEscapeMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Asha Rao", want: "Asha Rao"},
		{name: "link", in: "[x](https://e.example)", want: `\[x\]\(https\:\/\/e\.example\)`},
		{name: "emphasis", in: "*bold* _it_", want: `\*bold\* \_it\_`},
		{name: "line breaks", in: "a\n# b\r\nc", want: `a \# b  c`},
		{name: "unicode", in: "Zoë", want: "Zoë"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, EscapeMarkdown(tt.in))
		})
	}
}
