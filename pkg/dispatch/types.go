package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// Strategy decides how sessions are opened across a batch.
type Strategy int

const (
	// PerMessage opens, uses and closes a fresh session for every message.
	PerMessage Strategy = iota
	// Reuse opens one session for the whole batch and paces sends.
	Reuse
)

func (s Strategy) String() string {
	if s == Reuse {
		return "reuse"
	}
	return "per_message"
}

// ParseStrategy parses "per_message" or "reuse". An empty string is PerMessage.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_message", "per-message":
		return PerMessage, nil
	case "reuse":
		return Reuse, nil
	}
	return PerMessage, fmt.Errorf("dispatch: unknown strategy %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status is the outcome of one delivery attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Sender identifies the person signing partnership letters.
type Sender struct {
	Name        string
	Designation string
	Email       string // Defaults to the credentials address
}

// Batch is everything needed to send one template to a list of recipients.
type Batch struct {
	Records     []recipients.Record
	Spec        templates.Spec
	Credentials mailer.Credentials
	Sender      Sender

	// Attachments are sent with every message, in order. Inline parts are
	// not accepted here; the letterhead logo comes from Logo or branding.
	Attachments []mailer.Attachment

	// Logo replaces the branding logo for this batch when not empty.
	Logo []byte

	// Warnings from earlier stages, such as the recipient loader,
	// carried into the summary.
	Warnings []string
}

// Result is the outcome for one recipient.
type Result struct {
	Email     string        `json:"email"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Reason    mailer.Reason `json:"reason,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Summary aggregates a batch run. Results follow input order.
type Summary struct {
	BatchID     string    `json:"batch_id"`
	Template    string    `json:"template"`
	SentCount   int       `json:"sent_count"`
	FailedCount int       `json:"failed_count"`
	Results     []Result  `json:"results"`
	Warnings    []string  `json:"warnings"`
	Transport   string    `json:"transport,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Total returns the number of attempted recipients.
func (s *Summary) Total() int {
	return len(s.Results)
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	if r.Status == StatusSuccess {
		s.SentCount++
		return
	}
	s.FailedCount++
}
