package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/storage"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// maxMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const maxMemory = 32 << 20

// maxLogoSize bounds the optional letterhead logo upload.
const maxLogoSize = 5 << 20

// sendForm is the text part of a batch submission.
type sendForm struct {
	Template          string `form:"template_type" validate:"required"`
	Email             string `form:"email" validate:"required,email"`
	Password          string `form:"password" validate:"required"`
	SenderName        string `form:"sender_name" validate:"max=200"`
	SenderDesignation string `form:"sender_designation" validate:"max=200"`
	CSVText           string `form:"csv_notepad"`
}

// credentialsForm is the body of POST /validate_credentials.
type credentialsForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator output into a 400 with per-field messages.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	e := errBadRequest("Please correct the highlighted fields.", err)
	e.Fields = fields
	return e
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

// parseBatch reads a multipart batch submission.
func (s *Server) parseBatch(w http.ResponseWriter, r *http.Request) (dispatch.Batch, error) {
	if r.ContentLength > s.maxUploadSize {
		return dispatch.Batch{}, s.tooLarge(nil)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dispatch.Batch{}, s.tooLarge(err)
		}
		return dispatch.Batch{}, errBadRequest("Invalid form submission.", err)
	}

	form := sendForm{
		Template:          r.FormValue("template_type"),
		Email:             strings.TrimSpace(r.FormValue("email")),
		Password:          r.FormValue("password"),
		SenderName:        strings.TrimSpace(r.FormValue("sender_name")),
		SenderDesignation: strings.TrimSpace(r.FormValue("sender_designation")),
		CSVText:           r.FormValue("csv_notepad"),
	}
	if form.Template == "" {
		form.Template = string(templates.Interview)
	}
	if err := s.validate.Struct(form); err != nil {
		return dispatch.Batch{}, validationError(err)
	}

	kind, err := templates.ParseKind(form.Template)
	if err != nil {
		return dispatch.Batch{}, err
	}
	spec, err := templates.Lookup(kind)
	if err != nil {
		return dispatch.Batch{}, err
	}

	res, err := loadRecipients(r.MultipartForm, form.CSVText, spec.RequiredFields)
	if err != nil {
		return dispatch.Batch{}, err
	}

	batch := dispatch.Batch{
		Records:     res.Records,
		Spec:        spec,
		Credentials: mailer.Credentials{Email: form.Email, Password: form.Password},
		Sender: dispatch.Sender{
			Name:        form.SenderName,
			Designation: form.SenderDesignation,
		},
		Warnings: res.Warnings,
	}

	if fh := firstFile(r.MultipartForm, "logo_file"); fh != nil && fh.Size > 0 {
		logo, err := storage.FromFileHeader(fh, storage.ImageOnly(), storage.MaxSize(maxLogoSize))
		if err != nil {
			return dispatch.Batch{}, err
		}
		batch.Logo = logo.Content
	}

	for _, fh := range r.MultipartForm.File["attachments"] {
		if fh.Size == 0 {
			// Empty parts are reported by the dispatcher; nameless ones are
			// what browsers send for an untouched file input.
			if fh.Filename != "" {
				batch.Attachments = append(batch.Attachments, mailer.Attachment{Filename: storage.SafeFilename(fh.Filename)})
			}
			continue
		}
		a, err := storage.FromFileHeader(fh)
		if err != nil {
			return dispatch.Batch{}, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		batch.Attachments = append(batch.Attachments, a)
	}

	return batch, nil
}

func (s *Server) tooLarge(err error) *HTTPError {
	return NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Upload exceeds %d MB.", s.maxUploadSize>>20), err)
}

// loadRecipients prefers the uploaded file and falls back to pasted text.
func loadRecipients(form *multipart.Form, text string, required []string) (*recipients.Result, error) {
	if fh := firstFile(form, "csv_file"); fh != nil && fh.Size > 0 {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("web: open %s: %w", fh.Filename, err)
		}
		defer f.Close()
		return recipients.LoadFile(fh.Filename, f, required)
	}
	if strings.TrimSpace(text) != "" {
		return recipients.Load(strings.NewReader(text), required)
	}
	return nil, errBadRequest("CSV file is required.", recipients.ErrEmptyInput)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}
