package templates

import (
	"fmt"
	"slices"
	"strings"
)

// Kind identifies an email template.
type Kind string

// Supported template kinds.
const (
	Interview              Kind = "interview"
	Congratulations        Kind = "congratulations"
	PartnershipEnterprises Kind = "partnership_enterprises"
	PartnershipHR          Kind = "partnership_hr"
)

// Spec describes one template: what a recipient row must carry, how the
// subject reads, which letterhead wraps the body, and how attachments
// are named.
type Spec struct {
	Kind           Kind
	Title          string
	RequiredFields []string // Always starts with "email"
	Subject        string   // text/template over the message fields
	Branding       Profile
	Body           string // File name under bodies/
	NeedsSender    bool   // Requires sender name and designation

	// DocumentNames renames the i-th attachment to "<name>_<Recipient>.pdf".
	// Attachments beyond the list keep their file name.
	DocumentNames []string
}

var specs = []Spec{
	{
		Kind:           Interview,
		Title:          "Interview shortlisting",
		RequiredFields: []string{"email", "name", "role", "slot"},
		Subject:        "Interview Shortlisting - {{.role}} - {{.brand}}",
		Branding:       ProfileHR,
		Body:           "interview.md",
	},
	{
		Kind:           Congratulations,
		Title:          "Selection congratulations",
		RequiredFields: []string{"email", "name", "role", "company"},
		Subject:        "Congratulations! You're Selected at {{.company}} - {{.role}} Position",
		Branding:       ProfileHR,
		Body:           "congratulations.md",
		DocumentNames:  []string{"Offer_Letter", "Company_Policies", "Additional_Documents"},
	},
	{
		Kind:           PartnershipEnterprises,
		Title:          "Partnership proposal (Enterprises)",
		RequiredFields: []string{"email", "company"},
		Subject:        "Strategic Partnership Opportunity - {{.brand}}",
		Branding:       ProfileEnterprises,
		Body:           "partnership_enterprises.md",
		NeedsSender:    true,
	},
	{
		Kind:           PartnershipHR,
		Title:          "Partnership proposal (HR)",
		RequiredFields: []string{"email", "company"},
		Subject:        "Strategic Partnership Opportunity - {{.brand}}",
		Branding:       ProfileHR,
		Body:           "partnership_hr.md",
		NeedsSender:    true,
	},
}

// Lookup returns the spec for kind.
func Lookup(kind Kind) (Spec, error) {
	for _, s := range specs {
		if s.Kind == kind {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := Lookup(k); err != nil {
		return "", err
	}
	return k, nil
}

// All returns every spec in display order.
func All() []Spec {
	return slices.Clone(specs)
}

// Layout returns the layout file wrapping the body.
func (s Spec) Layout() string {
	return string(s.Branding) + ".html"
}

// AttachmentName returns the file name the i-th attachment is sent under.
func (s Spec) AttachmentName(i int, original, recipientName string) string {
	if i < 0 || i >= len(s.DocumentNames) || recipientName == "" {
		return original
	}
	return s.DocumentNames[i] + "_" + strings.ReplaceAll(strings.TrimSpace(recipientName), " ", "_") + ".pdf"
}
