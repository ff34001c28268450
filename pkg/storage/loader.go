package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Loader reads attachment content from local paths, "s3://bucket/key"
// references and http(s) URLs.
type Loader struct {
	s3      ObjectGetter
	client  *http.Client
	maxSize int64
	rules   []ValidationRule
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithS3 enables s3:// references.
func WithS3(getter ObjectGetter) LoaderOption {
	return func(l *Loader) { l.s3 = getter }
}

// WithHTTPClient sets the client used for http(s) references.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithMaxReadSize bounds the bytes read for a single file.
// Default: DefaultMaxReadSize.
func WithMaxReadSize(n int64) LoaderOption {
	return func(l *Loader) { l.maxSize = n }
}

// WithRules adds validation rules applied to every loaded file.
func WithRules(rules ...ValidationRule) LoaderOption {
	return func(l *Loader) { l.rules = append(l.rules, rules...) }
}

// NewLoader creates a loader. Without WithS3, s3:// references fail
// with ErrS3Disabled.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxSize: DefaultMaxReadSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads one reference into an attachment.
func (l *Loader) Load(ctx context.Context, ref string) (mailer.Attachment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return mailer.Attachment{}, ErrInvalidRef
	}

	var (
		name string
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		name, data, err = l.loadS3(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		name, data, err = l.download(ctx, ref)
	default:
		name, data, err = l.loadLocal(ref)
	}
	if err != nil {
		return mailer.Attachment{}, err
	}

	return l.attachment(name, data)
}

// LoadAll reads every reference in order. A file above the read limit is
// skipped and reported in the returned warnings; any other failure stops
// the load.
func (l *Loader) LoadAll(ctx context.Context, refs []string) ([]mailer.Attachment, []string, error) {
	out := make([]mailer.Attachment, 0, len(refs))
	var warnings []string
	for _, ref := range refs {
		a, err := l.Load(ctx, ref)
		if errors.Is(err, ErrFileTooLarge) {
			warnings = append(warnings, fmt.Sprintf("attachment %q is larger than %d MiB, skipped",
				refName(ref), l.maxSize>>20))
			continue
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("%s: %w", ref, err)
		}
		out = append(out, a)
	}
	return out, warnings, nil
}

// refName is the file name part of a reference, for warnings.
func refName(ref string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Path != "" {
		return path.Base(u.Path)
	}
	return filepath.Base(ref)
}

// FromFileHeader reads an uploaded multipart file into an attachment.
// MIME type is detected from magic bytes, not the filename extension.
// Returns ErrEmptyFile if the file is nil or has zero size.
// If any rule fails, returns *FileValidationError.
func FromFileHeader(fh *multipart.FileHeader, rules ...ValidationRule) (mailer.Attachment, error) {
	if fh == nil || fh.Size == 0 {
		return mailer.Attachment{}, ErrEmptyFile
	}

	f, err := fh.Open()
	if err != nil {
		return mailer.Attachment{}, fmt.Errorf("storage: failed to open file: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, DefaultMaxReadSize)
	if err != nil {
		return mailer.Attachment{}, err
	}

	l := &Loader{rules: rules}
	return l.attachment(fh.Filename, data)
}

func (l *Loader) attachment(name string, data []byte) (mailer.Attachment, error) {
	if len(data) == 0 {
		return mailer.Attachment{}, ErrEmptyFile
	}

	name = SafeFilename(name)
	info := FileInfo{
		Name:        name,
		ContentType: ContentType(name, data),
		Size:        int64(len(data)),
	}
	if err := Validate(info, l.rules...); err != nil {
		return mailer.Attachment{}, err
	}

	return mailer.Attachment{
		Filename:    info.Name,
		ContentType: info.ContentType,
		Content:     data,
	}, nil
}

func (l *Loader) loadLocal(p string) (string, []byte, error) {
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", nil, fmt.Errorf("storage: open %s: %w", p, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > l.maxSize {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	data, err := readLimited(f, l.maxSize)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(p), data, nil
}

func (l *Loader) loadS3(ctx context.Context, ref string) (string, []byte, error) {
	if l.s3 == nil {
		return "", nil, ErrS3Disabled
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", nil, fmt.Errorf("%w: %s: want s3://bucket/key", ErrInvalidRef, ref)
	}

	body, info, err := l.s3.Get(ctx, bucket, key)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	if info.Size > l.maxSize {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size)
	}
	data, err := readLimited(body, l.maxSize)
	if err != nil {
		return "", nil, err
	}
	return info.Name, data, nil
}

// download fetches an http(s) URL. Limits match local files.
func (l *Loader) download(ctx context.Context, sourceURL string) (string, []byte, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Host == "" {
		return "", nil, ErrInvalidRef
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return "", nil, fmt.Errorf("%w: %s", ErrAccessDenied, sourceURL)
	case resp.StatusCode != http.StatusOK:
		return "", nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	if resp.ContentLength > l.maxSize {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, resp.ContentLength)
	}

	data, err := readLimited(resp.Body, l.maxSize)
	if err != nil {
		return "", nil, err
	}

	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		name = "attachment" + ExtFromMIME(ContentType("", data))
	}
	return name, data, nil
}

// readLimited reads r fully, failing once more than limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	return data, nil
}

// unsafeFilenameChars matches characters that are not safe in file names.
var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\-_. ()]`)

// SafeFilename reduces name to a base name without path separators or
// control characters, suitable for a Content-Disposition header.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" || name == "/" {
		return "attachment"
	}
	return name
}
