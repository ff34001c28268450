package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

//go:embed views/*.html
var viewFiles embed.FS

// views holds the page chrome ("head" and "foot") shared with the templ
// pages, plus the batch form.
var views = template.Must(template.New("views").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(viewFiles, "views/*.html"))

// view adapts a named html/template to templ.Component.
func view(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return views.ExecuteTemplate(w, name, data)
	})
}

type indexPage struct {
	Templates       []templates.Spec
	Selected        templates.Kind
	MaxAttachmentMB int64
	MaxTotalMB      int64
}

func indexView() templ.Component {
	return view("index.html", indexPage{
		Templates:       templates.All(),
		Selected:        templates.Interview,
		MaxAttachmentMB: dispatch.MaxAttachmentSize >> 20,
		MaxTotalMB:      dispatch.MaxTotalAttachmentSize >> 20,
	})
}

// errorView is the data behind errorPage.
type errorView struct {
	Title     string
	Message   string
	Fields    map[string]string
	RequestID string
}

func newErrorView(e *HTTPError) errorView {
	return errorView{
		Title:     e.StatusText(),
		Message:   e.Message,
		Fields:    e.Fields,
		RequestID: e.RequestID,
	}
}

// fields returns the invalid field names in a stable order.
func (e errorView) fields() []string {
	return slices.Sorted(maps.Keys(e.Fields))
}

// render writes component as an HTML response with the given status code.
func render(ctx context.Context, w http.ResponseWriter, code int, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	return component.Render(ctx, w)
}
