package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips every tag. Policies are safe for concurrent use.
var strictPolicy = bluemonday.StrictPolicy()

// StripHTML removes every tag and returns plain text. Entities the policy
// escapes are decoded again, so "O'Brien & Sons" survives unchanged.
// Use for recipient fields that are later interpolated into subjects and bodies.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// StripFields applies StripHTML to every value and returns a new map.
func StripFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = StripHTML(v)
	}
	return out
}
