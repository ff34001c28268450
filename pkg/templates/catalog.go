package templates

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

//go:embed bodies/*.md layouts/*.html samples/*.csv
var files embed.FS

// FS exposes the embedded bodies, layouts and sample files.
func FS() fs.FS {
	return files
}

// Catalog renders template bodies inside their letterhead.
type Catalog struct {
	renderer *mailer.Renderer
}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	fs          fs.FS
	buttonColor string
}

// WithFS replaces the embedded templates, e.g. with os.DirFS for local edits.
// The filesystem must hold bodies/ and layouts/.
func WithFS(fsys fs.FS) CatalogOption {
	return func(o *catalogOptions) { o.fs = fsys }
}

// WithButtonColor sets the call-to-action button color.
func WithButtonColor(color string) CatalogOption {
	return func(o *catalogOptions) { o.buttonColor = color }
}

// NewCatalog creates a catalog over the embedded templates.
func NewCatalog(opts ...CatalogOption) *Catalog {
	o := catalogOptions{fs: files}
	for _, opt := range opts {
		opt(&o)
	}

	return &Catalog{
		renderer: mailer.NewRenderer(o.fs,
			mailer.WithBodyDir("bodies"),
			mailer.WithLayoutDir("layouts"),
			mailer.WithButtonColor(o.buttonColor),
		),
	}
}

// Render produces the HTML and plain text for spec from fields.
func (c *Catalog) Render(spec Spec, fields map[string]string) (html, text string, err error) {
	res, err := c.renderer.Render(spec.Layout(), spec.Body, fields)
	if err != nil {
		return "", "", err
	}
	return res.HTML, res.Text, nil
}

// SampleCSV returns an example recipient file for kind.
func SampleCSV(kind Kind) ([]byte, error) {
	if _, err := Lookup(kind); err != nil {
		return nil, err
	}
	data, err := files.ReadFile("samples/" + string(kind) + ".csv")
	if err != nil {
		return nil, fmt.Errorf("templates: sample for %s: %w", kind, err)
	}
	return data, nil
}
