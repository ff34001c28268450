package mailer

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultButtonColor is the button background when none is configured.
const DefaultButtonColor = "#1a73e8"

// ButtonNode is a call-to-action link written as [!button|Label](URL).
type ButtonNode struct {
	ast.BaseInline
	URL   []byte
	Label []byte
}

// KindButton is the node kind for ButtonNode.
var KindButton = ast.NewNodeKind("Button")

func (n *ButtonNode) Kind() ast.NodeKind {
	return KindButton
}

func (n *ButtonNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"URL":   string(n.URL),
		"Label": string(n.Label),
	}, nil)
}

var buttonPrefix = []byte("[!button|")

type buttonParser struct{}

// NewButtonParser creates the inline parser for button links.
func NewButtonParser() parser.InlineParser {
	return &buttonParser{}
}

func (p *buttonParser) Trigger() []byte {
	return []byte{'['}
}

func (p *buttonParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	rest, ok := bytes.CutPrefix(line, buttonPrefix)
	if !ok {
		return nil
	}
	label, rest, ok := bytes.Cut(rest, []byte("]("))
	if !ok || bytes.IndexByte(label, ']') >= 0 {
		return nil
	}
	url, _, ok := bytes.Cut(rest, []byte(")"))
	if !ok {
		return nil
	}

	block.Advance(len(buttonPrefix) + len(label) + 2 + len(url) + 1)

	return &ButtonNode{URL: url, Label: label}
}

// Mail clients drop <style> blocks, so the button is styled inline.
type buttonRenderer struct {
	html.Config
	color string
}

// NewButtonRenderer creates the renderer for ButtonNode with the given background color.
func NewButtonRenderer(color string, opts ...html.Option) renderer.NodeRenderer {
	r := &buttonRenderer{Config: html.NewConfig(), color: color}
	for _, opt := range opts {
		opt.SetHTMLOption(&r.Config)
	}
	return r
}

func (r *buttonRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindButton, r.renderButton)
}

func (r *buttonRenderer) renderButton(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ButtonNode)

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.URL, true)))
	_, _ = w.WriteString(`" style="display:inline-block;padding:12px 24px;background-color:`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.color)))
	_, _ = w.WriteString(`;color:#ffffff;text-decoration:none;border-radius:6px;font-weight:bold;">`)
	_, _ = w.Write(util.EscapeHTML(n.Label))
	_, _ = w.WriteString(`</a>`)

	return ast.WalkContinue, nil
}

// ButtonExtension registers the button parser and renderer with goldmark.
type ButtonExtension struct {
	Color string
}

func (e *ButtonExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(NewButtonParser(), 50),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(NewButtonRenderer(e.Color), 50),
	))
}

// NewButtonExtension creates a button extension rendering buttons in color.
// An empty color falls back to DefaultButtonColor.
func NewButtonExtension(color string) goldmark.Extender {
	if color == "" {
		color = DefaultButtonColor
	}
	return &ButtonExtension{Color: color}
}
