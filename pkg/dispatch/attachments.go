package dispatch

import (
	"fmt"
	"net/http"

	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// Attachment size limits.
const (
	MaxAttachmentSize      int64 = 25 << 20
	MaxTotalAttachmentSize int64 = 100 << 20
)

// PrepareAttachments applies the size policy. Files above
// MaxAttachmentSize are dropped with a warning; if the accepted files
// together exceed MaxTotalAttachmentSize the whole set is rejected.
func PrepareAttachments(in []mailer.Attachment) ([]mailer.Attachment, []string, error) {
	var (
		accepted []mailer.Attachment
		warnings []string
		total    int64
	)

	for _, a := range in {
		size := a.Size()
		if size > MaxAttachmentSize {
			warnings = append(warnings, fmt.Sprintf("attachment %q is %s, above the %s limit, skipped",
				a.Filename, formatSize(size), formatSize(MaxAttachmentSize)))
			continue
		}
		if size == 0 {
			warnings = append(warnings, fmt.Sprintf("attachment %q is empty, skipped", a.Filename))
			continue
		}
		a.ContentID = ""
		accepted = append(accepted, a)
		total += size
	}

	if total > MaxTotalAttachmentSize {
		return nil, warnings, fmt.Errorf("%w: %s of %s allowed", ErrAttachmentsTooLarge,
			formatSize(total), formatSize(MaxTotalAttachmentSize))
	}
	return accepted, warnings, nil
}

// logoAttachment builds the inline letterhead image, or nil without a logo.
func logoAttachment(logo []byte) *mailer.Attachment {
	if len(logo) == 0 {
		return nil
	}
	contentType := http.DetectContentType(logo)
	name := "logo"
	switch contentType {
	case "image/png":
		name += ".png"
	case "image/jpeg":
		name += ".jpg"
	case "image/gif":
		name += ".gif"
	case "image/webp":
		name += ".webp"
	}
	return &mailer.Attachment{
		Filename:    name,
		ContentType: contentType,
		ContentID:   templates.LogoContentID,
		Content:     logo,
	}
}

func formatSize(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/mib)
}
