package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown bodies with YAML frontmatter into HTML
// wrapped by an html/template layout.
//
// Bodies are executed as text/template with missingkey=error, so a
// field referenced by a body but absent from the data fails the render
// instead of producing "<no value>".
//
// Values from untrusted input go through the escape function:
//
//	Dear {{escape .name}},
//
// The HTML body then shows them literally instead of as markdown. The
// plain-text body receives them unchanged.
type Renderer struct {
	fs fs.FS
	md goldmark.Markdown

	// Parsed structure only, never rendered output.
	bodies  map[string]*cachedBody
	layouts map[string]*template.Template

	bodyDir   string
	layoutDir string
	funcs     texttemplate.FuncMap

	mu sync.RWMutex
}

type cachedBody struct {
	metadata map[string]any
	tmpl     *texttemplate.Template // escape quotes markdown
	plain    *texttemplate.Template // escape is the identity
}

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	bodyDir     string
	layoutDir   string
	buttonColor string
	funcs       texttemplate.FuncMap
}

// WithBodyDir sets the directory holding markdown bodies. Default: ".".
func WithBodyDir(dir string) RendererOption {
	return func(o *rendererOptions) { o.bodyDir = dir }
}

// WithLayoutDir sets the directory holding HTML layouts. Default: "layouts".
func WithLayoutDir(dir string) RendererOption {
	return func(o *rendererOptions) { o.layoutDir = dir }
}

// WithButtonColor sets the background color of [!button|...] links.
func WithButtonColor(color string) RendererOption {
	return func(o *rendererOptions) { o.buttonColor = color }
}

// WithFuncs adds functions available to markdown bodies.
func WithFuncs(funcs texttemplate.FuncMap) RendererOption {
	return func(o *rendererOptions) {
		for k, v := range funcs {
			o.funcs[k] = v
		}
	}
}

// NewRenderer creates a renderer reading bodies and layouts from filesystem.
func NewRenderer(filesystem fs.FS, opts ...RendererOption) *Renderer {
	o := rendererOptions{
		bodyDir:     ".",
		layoutDir:   "layouts",
		buttonColor: DefaultButtonColor,
		funcs:       texttemplate.FuncMap{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Renderer{
		fs:        filesystem,
		bodyDir:   o.bodyDir,
		layoutDir: o.layoutDir,
		funcs:     o.funcs,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				NewButtonExtension(o.buttonColor),
			),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		bodies:  make(map[string]*cachedBody),
		layouts: make(map[string]*template.Template),
	}
}

// RenderResult contains the rendered HTML, plain text, and extracted metadata.
type RenderResult struct {
	Metadata map[string]any
	HTML     string
	Text     string // Processed markdown before HTML conversion, values unescaped
}

// Render executes body with data, converts it to HTML and wraps it with layout.
// The layout sees .Content (the body HTML), .Metadata (body frontmatter)
// and .Data (the same data the body received).
func (r *Renderer) Render(layout, body string, data any) (*RenderResult, error) {
	cached, err := r.body(body)
	if err != nil {
		return nil, err
	}

	var markdown bytes.Buffer
	if err := cached.tmpl.Execute(&markdown, data); err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, body, err)
	}

	var text strings.Builder
	if err := cached.plain.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, body, err)
	}

	var content bytes.Buffer
	if err := r.md.Convert(markdown.Bytes(), &content); err != nil {
		return nil, fmt.Errorf("%w: convert markdown: %v", ErrRenderFailed, err)
	}

	layoutTmpl, err := r.layout(layout)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = layoutTmpl.Execute(&out, map[string]any{
		"Content":  template.HTML(content.String()),
		"Metadata": cached.metadata,
		"Data":     data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: execute layout %s: %v", ErrRenderFailed, layout, err)
	}

	return &RenderResult{
		HTML:     out.String(),
		Text:     text.String(),
		Metadata: cached.metadata,
	}, nil
}

func (r *Renderer) body(name string) (*cachedBody, error) {
	r.mu.RLock()
	if cached, ok := r.bodies[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.bodies[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.bodyDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}

	parsed, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
	}

	tmpl, err := texttemplate.New(name).
		Option("missingkey=error").
		Funcs(texttemplate.FuncMap{"escape": EscapeMarkdown}).
		Funcs(r.funcs).
		Parse(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}
	plain, err := tmpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}
	plain.Funcs(texttemplate.FuncMap{"escape": func(s string) string { return s }})

	cached := &cachedBody{metadata: parsed.Metadata, tmpl: tmpl, plain: plain}
	r.bodies[name] = cached
	return cached, nil
}

func (r *Renderer) layout(name string) (*template.Template, error) {
	r.mu.RLock()
	if cached, ok := r.layouts[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.layouts[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, name, err)
	}

	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse layout %s: %v", ErrRenderFailed, name, err)
	}

	r.layouts[name] = tmpl
	return tmpl, nil
}
