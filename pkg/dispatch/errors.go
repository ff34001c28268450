package dispatch

import "errors"

// Batch-level errors. Per-recipient delivery failures never surface here;
// they are recorded in Summary.Results.
var (
	ErrNoCredentials       = errors.New("dispatch: sender email and password are required")
	ErrSenderRequired      = errors.New("dispatch: sender name and designation are required for this template")
	ErrNoRecipients        = errors.New("dispatch: no recipients")
	ErrAttachmentsTooLarge = errors.New("dispatch: attachments exceed the total size limit")
	ErrRender              = errors.New("dispatch: render failed")
)
