package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dazzlo/bulkmail/pkg/id"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// Renderer produces the HTML and plain-text bodies for a template.
type Renderer interface {
	Render(spec templates.Spec, fields map[string]string) (html, text string, err error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(spec templates.Spec, fields map[string]string) (string, string, error)

// Render implements Renderer.
func (f RendererFunc) Render(spec templates.Spec, fields map[string]string) (string, string, error) {
	return f(spec, fields)
}

// Dispatcher renders and delivers one message per recipient, strictly
// in input order. It is safe to run several batches concurrently; each
// Run is sequential.
type Dispatcher struct {
	transport mailer.Transport
	renderer  Renderer
	branding  templates.Config
	strategy  Strategy
	delay     time.Duration
	delaySet  bool
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a dispatcher sending through transport.
func New(transport mailer.Transport, renderer Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		renderer:  renderer,
		branding:  templates.DefaultConfig(),
		strategy:  PerMessage,
		logger:    logger.NewNope(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	if !d.delaySet && d.strategy == Reuse {
		d.delay = DefaultDelay
	}
	return d
}

// Strategy returns the configured session strategy.
func (d *Dispatcher) Strategy() Strategy {
	return d.strategy
}

// Delay returns the pause between consecutive messages.
func (d *Dispatcher) Delay() time.Duration {
	return d.delay
}

// Validate checks a batch without contacting the transport.
func (d *Dispatcher) Validate(b Batch) error {
	if _, err := templates.Lookup(b.Spec.Kind); err != nil {
		return err
	}
	if b.Credentials.Email == "" || b.Credentials.Password == "" {
		return ErrNoCredentials
	}
	if b.Spec.NeedsSender && (b.Sender.Name == "" || b.Sender.Designation == "") {
		return ErrSenderRequired
	}
	if len(b.Records) == 0 {
		return ErrNoRecipients
	}

	var missing []string
	for _, rec := range b.Records {
		for _, field := range b.Spec.RequiredFields {
			if field == "email" || slices.Contains(missing, field) {
				continue
			}
			if _, ok := rec.Fields[field]; !ok {
				missing = append(missing, field)
			}
		}
	}
	if len(missing) > 0 {
		return &recipients.MissingColumnsError{Missing: missing}
	}
	return nil
}

// Run delivers the batch. Validation and attachment-size failures return
// a nil summary before any connection is made. A render failure or a
// canceled context stops the batch and returns the summary so far along
// with the error. Delivery failures are recorded per recipient and never
// returned as the error.
func (d *Dispatcher) Run(ctx context.Context, b Batch) (*Summary, error) {
	if err := d.Validate(b); err != nil {
		return nil, err
	}
	attachments, warnings, err := PrepareAttachments(b.Attachments)
	if err != nil {
		return nil, err
	}

	started := d.now()
	summary := &Summary{
		BatchID:   id.NewULIDAt(started),
		Template:  string(b.Spec.Kind),
		StartedAt: started,
		Results:   make([]Result, 0, len(b.Records)),
		Warnings:  append(slices.Clone(b.Warnings), warnings...),
	}
	ctx = logger.WithBatchID(ctx, summary.BatchID)

	job := d.plan(b, attachments, summary)

	d.logger.InfoContext(ctx, "batch started",
		slog.String("template", summary.Template),
		slog.String("strategy", d.strategy.String()),
		slog.Int("recipients", len(job.records)),
		slog.Int("attachments", len(attachments)),
	)

	if d.strategy == Reuse {
		err = d.runReuse(ctx, job, summary)
	} else {
		err = d.runPerMessage(ctx, job, summary)
	}
	summary.FinishedAt = d.now()

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	d.logger.Log(ctx, level, "batch finished",
		slog.Int("sent", summary.SentCount),
		slog.Int("failed", summary.FailedCount),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		slog.Any("error", err),
	)

	return summary, err
}

// job is a validated batch ready to send.
type job struct {
	batch       Batch
	records     []recipients.Record
	fields      fieldSet
	from        string
	replyTo     string
	logo        *mailer.Attachment
	attachments []mailer.Attachment
	batchID     string
}

func (d *Dispatcher) plan(b Batch, attachments []mailer.Attachment, summary *Summary) *job {
	brand := d.branding.Profile(b.Spec.Branding)
	logo := b.Logo
	if len(logo) == 0 {
		logo = brand.Logo
	}

	j := &job{
		batch:       b,
		records:     make([]recipients.Record, 0, len(b.Records)),
		from:        mailer.Recipient(brand.Name, b.Credentials.Email),
		logo:        logoAttachment(logo),
		attachments: attachments,
		batchID:     summary.BatchID,
	}
	j.fields = batchFields(b.Spec, brand, b.Sender, b.Credentials.Email, summary.StartedAt, j.logo != nil)
	if b.Spec.NeedsSender && b.Sender.Email != "" {
		j.replyTo = mailer.Recipient(b.Sender.Name, b.Sender.Email)
	}

	for _, rec := range b.Records {
		if rec.Email == "" {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("row %d: empty email, skipped", rec.Row))
			continue
		}
		j.records = append(j.records, rec)
	}
	return j
}

// compose renders the message for one record.
func (d *Dispatcher) compose(j *job, rec recipients.Record) (*mailer.Email, error) {
	spec := j.batch.Spec
	fields := j.fields.forRecord(rec)

	html, text, err := d.renderer.Render(spec, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", ErrRender, rec.Row, err)
	}
	subject, err := mailer.ExecuteSubject(spec.Subject, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", ErrRender, rec.Row, err)
	}

	atts := make([]mailer.Attachment, 0, len(j.attachments)+1)
	if j.logo != nil {
		atts = append(atts, *j.logo)
	}
	for i, a := range j.attachments {
		a.Filename = spec.AttachmentName(i, a.Filename, rec.Field("name"))
		atts = append(atts, a)
	}

	return &mailer.Email{
		Headers:     map[string]string{"X-Batch-ID": j.batchID},
		Subject:     subject,
		HTML:        html,
		Text:        text,
		From:        j.from,
		ReplyTo:     j.replyTo,
		To:          []string{rec.Email},
		Attachments: atts,
	}, nil
}

func (d *Dispatcher) runPerMessage(ctx context.Context, j *job, summary *Summary) error {
	for i, rec := range j.records {
		if err := d.pause(ctx, i); err != nil {
			return err
		}
		email, err := d.compose(j, rec)
		if err != nil {
			return err
		}

		rctx := logger.WithRecipient(ctx, rec.Email, rec.Row)
		start := d.now()
		sess, err := d.transport.Open(rctx, j.batch.Credentials)
		if err == nil {
			err = sess.Send(rctx, email)
			_ = sess.Close()
		}
		d.record(rctx, summary, rec, email, err, d.now().Sub(start))
	}
	return nil
}

func (d *Dispatcher) runReuse(ctx context.Context, j *job, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, openErr := d.transport.Open(ctx, j.batch.Credentials)
	if openErr != nil {
		d.logger.WarnContext(ctx, "no mail server accepted the credentials", slog.Any("error", openErr))
	} else {
		summary.Transport = describe(sess)
	}
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	redialed := false
	sent := 0
	for i, rec := range j.records {
		// Records failed without a session are not paced.
		if sess != nil {
			if err := d.pause(ctx, sent); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		email, err := d.compose(j, rec)
		if err != nil {
			return err
		}

		rctx := logger.WithRecipient(ctx, rec.Email, rec.Row)
		if sess == nil {
			d.record(rctx, summary, rec, email, openErr, 0)
			continue
		}

		sent++
		start := d.now()
		err = sess.Send(rctx, email)
		d.record(rctx, summary, rec, email, err, d.now().Sub(start))

		last := i == len(j.records)-1
		if redialed || last || !errors.Is(err, mailer.ErrDisconnected) {
			continue
		}
		redialed = true
		_ = sess.Close()
		sess, openErr = d.redial(ctx, sess, j.batch.Credentials)
		if openErr != nil {
			sess = nil
			d.logger.WarnContext(ctx, "redial failed", slog.Any("error", openErr))
		}
	}
	return nil
}

// redial reconnects to the server the broken session used. Sessions that
// cannot redial fall back to opening through the transport.
func (d *Dispatcher) redial(ctx context.Context, broken mailer.Session, creds mailer.Credentials) (mailer.Session, error) {
	d.logger.InfoContext(ctx, "connection lost, redialing", slog.String("transport", describe(broken)))
	if r, ok := broken.(mailer.Redialer); ok {
		return r.Redial(ctx)
	}
	return d.transport.Open(ctx, creds)
}

// pause checks for cancellation and waits before every message but the
// first one (i == 0).
func (d *Dispatcher) pause(ctx context.Context, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i == 0 || d.delay <= 0 {
		return nil
	}
	return d.sleep(ctx, d.delay)
}

// record logs with the recipient scope of ctx (see logger.WithRecipient).
func (d *Dispatcher) record(ctx context.Context, summary *Summary, rec recipients.Record, email *mailer.Email, err error, elapsed time.Duration) {
	res := Result{
		Email:    rec.Email,
		Duration: elapsed,
	}
	if err == nil {
		res.Status = StatusSuccess
		res.Message = "Email sent successfully"
		res.MessageID = email.MessageID
		d.logger.InfoContext(ctx, "message sent",
			slog.String("message_id", email.MessageID),
			slog.Duration("duration", elapsed),
		)
	} else {
		res.Status = StatusFailure
		res.Reason = mailer.Classify(err)
		res.Message = mailer.Describe(res.Reason, err)
		d.logger.WarnContext(ctx, "message failed",
			slog.String("reason", string(res.Reason)),
			slog.Any("error", err),
		)
	}
	summary.add(res)
}

func describe(sess mailer.Session) string {
	if s, ok := sess.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", sess)
}
