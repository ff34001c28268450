package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/dnsverify"
	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// handlerFunc is a handler that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts h to http.HandlerFunc; a returned error is logged and
// rendered as JSON or an HTML page depending on the request.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.renderError(w, r, err)
		}
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := AsHTTPError(err)
	httpErr.RequestID = RequestID(r.Context())

	level := slog.LevelWarn
	if httpErr.Code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", httpErr.Code),
		slog.Any("error", err),
	)

	if wantsJSON(r) {
		_ = writeJSON(w, httpErr.Code, errorResponse{
			Error:     httpErr.Message,
			Fields:    httpErr.Fields,
			RequestID: httpErr.RequestID,
		})
		return
	}
	if rerr := render(r.Context(), w, httpErr.Code, errorPage(newErrorView(httpErr))); rerr != nil {
		s.logger.ErrorContext(r.Context(), "render error page", slog.Any("error", rerr))
	}
}

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) error {
	return render(r.Context(), w, http.StatusOK, indexView())
}

// send handles the upload form and renders the results page. A batch cut
// short by a rendering failure still shows the recipients already
// processed, with the failure as a warning.
func (s *Server) send(w http.ResponseWriter, r *http.Request) error {
	batch, err := s.parseBatch(w, r)
	if err != nil {
		return err
	}

	summary, err := s.dispatcher.Run(r.Context(), batch)
	if err != nil {
		if summary == nil {
			return err
		}
		summary.Warnings = append(summary.Warnings, "Sending stopped early: "+AsHTTPError(err).Message)
		s.logger.ErrorContext(r.Context(), "batch stopped", slog.String("batch_id", summary.BatchID), slog.Any("error", err))
	}
	return render(r.Context(), w, http.StatusOK, resultsPage(summary))
}

type batchResponse struct {
	*dispatch.Summary
	Error string `json:"error,omitempty"`
}

// createBatch is the JSON variant of send.
func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) error {
	batch, err := s.parseBatch(w, r)
	if err != nil {
		return err
	}

	summary, err := s.dispatcher.Run(r.Context(), batch)
	if err != nil {
		if summary == nil {
			return err
		}
		httpErr := AsHTTPError(err)
		return writeJSON(w, httpErr.Code, batchResponse{Summary: summary, Error: httpErr.Message})
	}
	return writeJSON(w, http.StatusOK, batchResponse{Summary: summary})
}

// previewSender signs partnership previews.
var previewSender = dispatch.Sender{
	Name:        "Your Name",
	Designation: "Business Development Manager",
}

// preview renders a template with the first row of its sample file.
// ?format=text returns the plain text part.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) error {
	kind, err := templates.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return errNotFound("Unknown template type.")
	}

	v, err, _ := s.previews.Do(string(kind), func() (any, error) {
		return s.renderPreview(kind)
	})
	if err != nil {
		return err
	}
	p := v.(*dispatch.Preview)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := w.Write([]byte(p.Text))
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write([]byte(p.HTML))
	return err
}

func (s *Server) renderPreview(kind templates.Kind) (*dispatch.Preview, error) {
	spec, err := templates.Lookup(kind)
	if err != nil {
		return nil, err
	}
	sample, err := templates.SampleCSV(kind)
	if err != nil {
		return nil, err
	}
	res, err := recipients.Load(bytes.NewReader(sample), spec.RequiredFields)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Preview(spec, res.Records[0], previewSender)
}

type templateInfo struct {
	Kind           templates.Kind `json:"kind"`
	Title          string         `json:"title"`
	Subject        string         `json:"subject"`
	RequiredFields []string       `json:"required_fields"`
	NeedsSender    bool           `json:"needs_sender"`
	Attachments    []string       `json:"attachment_names,omitempty"`
	SampleCSV      string         `json:"sample_csv"`
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) error {
	specs := templates.All()
	out := make([]templateInfo, 0, len(specs))
	for _, spec := range specs {
		sample, err := templates.SampleCSV(spec.Kind)
		if err != nil {
			return err
		}
		out = append(out, templateInfo{
			Kind:           spec.Kind,
			Title:          spec.Title,
			Subject:        spec.Subject,
			RequiredFields: spec.RequiredFields,
			NeedsSender:    spec.NeedsSender,
			Attachments:    spec.DocumentNames,
			SampleCSV:      string(sample),
		})
	}
	return writeJSON(w, http.StatusOK, out)
}

func (s *Server) sampleCSV(w http.ResponseWriter, r *http.Request) error {
	kind, err := templates.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return errNotFound("Unknown template type.")
	}
	sample, err := templates.SampleCSV(kind)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(kind)+`.csv"`)
	_, err = w.Write(sample)
	return err
}

type credentialsResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Reason  mailer.Reason `json:"reason,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// validateCredentials opens and closes a session without sending.
// Accepts a JSON body or a form.
func (s *Server) validateCredentials(w http.ResponseWriter, r *http.Request) error {
	var form credentialsForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&form); err != nil {
			return writeJSON(w, http.StatusBadRequest, credentialsResponse{Message: "Invalid request body."})
		}
	} else {
		form.Email = r.FormValue("email")
		form.Password = r.FormValue("password")
	}
	form.Email = strings.TrimSpace(form.Email)

	if err := s.validate.Struct(form); err != nil {
		return writeJSON(w, http.StatusBadRequest, credentialsResponse{Message: "Email and password are required."})
	}

	sess, err := s.transport.Open(r.Context(), mailer.Credentials{Email: form.Email, Password: form.Password})
	if err != nil {
		reason := mailer.Classify(err)
		s.logger.WarnContext(r.Context(), "credential check failed",
			slog.String("email", form.Email),
			slog.String("reason", string(reason)),
		)
		return writeJSON(w, http.StatusOK, credentialsResponse{
			Message: mailer.Describe(reason, nil),
			Reason:  reason,
		})
	}
	if err := sess.Close(); err != nil {
		s.logger.WarnContext(r.Context(), "close session", slog.Any("error", err))
	}

	resp := credentialsResponse{Success: true, Message: "Credentials are valid"}
	if s.resolver != nil {
		if err := dnsverify.CheckSPF(r.Context(), s.resolver, form.Email, s.spf...); err != nil {
			resp.Warning = spfWarning(err)
		}
	}
	return writeJSON(w, http.StatusOK, resp)
}

func spfWarning(err error) string {
	switch {
	case errors.Is(err, dnsverify.ErrSenderNotAuthorized):
		return "The sender domain's SPF record does not include this mail provider; messages may be marked as spam."
	case errors.Is(err, dnsverify.ErrSPFNotFound), errors.Is(err, dnsverify.ErrTXTRecordNotFound):
		return "The sender domain has no SPF record; messages may be marked as spam."
	}
	return "The sender domain's SPF record could not be checked."
}

// wantsJSON reports whether the client expects a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/validate_credentials" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
