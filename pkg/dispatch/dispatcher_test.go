package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

var fixedNow = time.Date(2025, 7, 23, 10, 0, 0, 0, time.UTC)

var creds = mailer.Credentials{Email: "hr@dazzlohr.in", Password: "app-password"}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Open(ctx context.Context, c mailer.Credentials) (mailer.Session, error) {
	args := m.Called(ctx, c)
	sess, _ := args.Get(0).(mailer.Session)
	return sess, args.Error(1)
}

type mockSession struct {
	mock.Mock
	name string
	sent []*mailer.Email
}

func (m *mockSession) Send(ctx context.Context, email *mailer.Email) error {
	m.sent = append(m.sent, email)
	return m.Called(ctx, email).Error(0)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}

func (m *mockSession) String() string {
	return m.name
}

type redialSession struct {
	*mockSession
}

func (r *redialSession) Redial(ctx context.Context) (mailer.Session, error) {
	args := r.Called(ctx)
	sess, _ := args.Get(0).(mailer.Session)
	return sess, args.Error(1)
}

func newSession(name string) *mockSession {
	s := &mockSession{name: name}
	s.On("Close").Return(nil).Maybe()
	return s
}

func spec(t *testing.T, kind templates.Kind) templates.Spec {
	t.Helper()
	s, err := templates.Lookup(kind)
	require.NoError(t, err)
	return s
}

func load(t *testing.T, s templates.Spec, csv string) []recipients.Record {
	t.Helper()
	res, err := recipients.Load(strings.NewReader(csv), s.RequiredFields)
	require.NoError(t, err)
	return res.Records
}

func newDispatcher(tr mailer.Transport, opts ...dispatch.Option) *dispatch.Dispatcher {
	opts = append([]dispatch.Option{dispatch.WithClock(func() time.Time { return fixedNow })}, opts...)
	return dispatch.New(tr, templates.NewCatalog(), opts...)
}

func TestRun_InterviewSuccess(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil).Once()

	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,slot\na@x.com,Alice,Engineer,Monday 10am\n"),
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SentCount)
	require.Equal(t, 0, summary.FailedCount)
	require.Len(t, summary.Results, 1)
	require.Equal(t, dispatch.StatusSuccess, summary.Results[0].Status)
	require.Equal(t, "a@x.com", summary.Results[0].Email)
	require.Len(t, summary.BatchID, 26)
	require.Equal(t, "interview", summary.Template)
	tr.AssertExpectations(t)
	sess.AssertCalled(t, "Close")

	require.Len(t, sess.sent, 1)
	email := sess.sent[0]
	require.Equal(t, []string{"a@x.com"}, email.To)
	require.Equal(t, "Interview Shortlisting - Engineer - DazzloHR", email.Subject)
	require.Contains(t, email.From, "<hr@dazzlohr.in>")
	require.Contains(t, email.HTML, "Alice")
	require.Contains(t, email.HTML, "23rd July 2025")
	require.Contains(t, email.HTML, `src="cid:company_logo"`)
	require.Equal(t, summary.BatchID, email.Headers["X-Batch-ID"])
	require.Len(t, email.Attachments, 1)
	require.Equal(t, templates.LogoContentID, email.Attachments[0].ContentID)
	require.Equal(t, "image/png", email.Attachments[0].ContentType)
}

func TestRun_LogsCarryRecipientScope(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.MatchedBy(func(e *mailer.Email) bool { return e.To[0] == "alice@x.com" })).Return(nil)
	sess.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("550: %w", mailer.ErrRecipientRejected))
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf})
	summary, err := newDispatcher(tr, dispatch.WithLogger(log)).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,slot\nalice@x.com,Alice,Engineer,Mon\nbob.smith@x.com,Bob,Engineer,Tue\n"),
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)

	entries := map[string]map[string]any{}
	for line := range bytes.SplitSeq(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		entries[entry["msg"].(string)] = entry
	}

	tests := []struct {
		msg   string
		email string
		row   float64
	}{
		{msg: "message sent", email: "al***@x.com", row: 2},
		{msg: "message failed", email: "bo***@x.com", row: 3},
	}
	for _, tt := range tests {
		entry := entries[tt.msg]
		require.NotNil(t, entry, tt.msg)
		require.Equal(t, tt.email, entry["email"], tt.msg)
		require.Equal(t, tt.row, entry["row"], tt.msg)
		require.Equal(t, summary.BatchID, entry["batch_id"], tt.msg)
	}
	require.Equal(t, string(mailer.ReasonRecipientRejected), entries["message failed"]["reason"])
	require.NotContains(t, entries["batch finished"], "email")
}

func TestRun_AuthenticationFailure(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).
		Return(nil, fmt.Errorf("smtp: auth: %w: 535 bad credentials", mailer.ErrAuthentication))

	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,slot\na@x.com,Alice,Engineer,Monday 10am\n"),
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)
	require.Equal(t, 0, summary.SentCount)
	require.Equal(t, 1, summary.FailedCount)

	res := summary.Results[0]
	require.Equal(t, dispatch.StatusFailure, res.Status)
	require.Equal(t, mailer.ReasonAuthenticationFailed, res.Reason)
	require.Contains(t, res.Message, "Authentication failed")
}

func TestRun_EmptyEmailSkipped(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	records := []recipients.Record{
		{Email: "a@x.com", Fields: map[string]string{"company": "Acme"}, Row: 2},
		{Email: "", Fields: map[string]string{"company": "Ghost"}, Row: 3},
		{Email: "b@y.com", Fields: map[string]string{"company": "Beta"}, Row: 4},
	}

	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     records,
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total())
	require.Equal(t, summary.SentCount+summary.FailedCount, summary.Total())
	require.Equal(t, "a@x.com", summary.Results[0].Email)
	require.Equal(t, "b@y.com", summary.Results[1].Email)
	require.Contains(t, summary.Warnings, "row 3: empty email, skipped")
	tr.AssertNumberOfCalls(t, "Open", 2)
}

func TestRun_ValidationErrors(t *testing.T) {
	t.Parallel()

	interview := spec(t, templates.Interview)
	partnership := spec(t, templates.PartnershipEnterprises)
	rec := recipients.Record{Email: "a@x.com", Fields: map[string]string{"name": "A", "role": "R", "slot": "S", "company": "C"}}

	tests := []struct {
		name  string
		batch dispatch.Batch
		want  error
	}{
		{
			name:  "unknown kind",
			batch: dispatch.Batch{Records: []recipients.Record{rec}, Credentials: creds},
			want:  templates.ErrUnknownKind,
		},
		{
			name:  "missing password",
			batch: dispatch.Batch{Records: []recipients.Record{rec}, Spec: interview, Credentials: mailer.Credentials{Email: "hr@dazzlohr.in"}},
			want:  dispatch.ErrNoCredentials,
		},
		{
			name:  "partnership without sender",
			batch: dispatch.Batch{Records: []recipients.Record{rec}, Spec: partnership, Credentials: creds, Sender: dispatch.Sender{Name: "Siddhant"}},
			want:  dispatch.ErrSenderRequired,
		},
		{
			name:  "no records",
			batch: dispatch.Batch{Spec: interview, Credentials: creds},
			want:  dispatch.ErrNoRecipients,
		},
		{
			name: "missing slot",
			batch: dispatch.Batch{
				Records:     []recipients.Record{{Email: "a@x.com", Fields: map[string]string{"name": "A", "role": "R"}}},
				Spec:        interview,
				Credentials: creds,
			},
			want: recipients.ErrMissingColumns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := &mockTransport{}
			summary, err := newDispatcher(tr).Run(context.Background(), tt.batch)
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, summary)
			tr.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_MissingColumnsListsFields(t *testing.T) {
	t.Parallel()

	d := newDispatcher(&mockTransport{})
	err := d.Validate(dispatch.Batch{
		Records:     []recipients.Record{{Email: "a@x.com", Fields: map[string]string{"name": "A"}}},
		Spec:        spec(t, templates.Interview),
		Credentials: creds,
	})

	var mce *recipients.MissingColumnsError
	require.ErrorAs(t, err, &mce)
	require.Equal(t, []string{"role", "slot"}, mce.Missing)
}

func TestRun_RenderFailureStopsBatch(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	calls := 0
	renderer := dispatch.RendererFunc(func(templates.Spec, map[string]string) (string, string, error) {
		calls++
		if calls == 2 {
			return "", "", mailer.ErrRenderFailed
		}
		return "<p>hi</p>", "hi", nil
	})

	d := dispatch.New(tr, renderer, dispatch.WithClock(func() time.Time { return fixedNow }))
	summary, err := d.Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,company\na@x.com,Acme\nb@y.com,Beta\nc@z.com,Gamma\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
	})
	require.ErrorIs(t, err, dispatch.ErrRender)
	require.ErrorIs(t, err, mailer.ErrRenderFailed)
	require.NotNil(t, summary)
	require.Equal(t, 1, summary.SentCount)
	require.Len(t, summary.Results, 1)
	require.Len(t, sess.sent, 1)
}

func TestRun_FieldsAreStrippedOfHTML(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	var got map[string]string
	renderer := dispatch.RendererFunc(func(_ templates.Spec, fields map[string]string) (string, string, error) {
		got = fields
		return "<p>hi</p>", "hi", nil
	})

	d := dispatch.New(tr, renderer, dispatch.WithClock(func() time.Time { return fixedNow }))
	_, err := d.Run(context.Background(), dispatch.Batch{
		Records: []recipients.Record{{
			Email:  "a@x.com",
			Fields: map[string]string{"name": "<b>Alice</b>", "role": "Engineer<script>x()</script>", "slot": "Mon", "brand": "Spoofed"},
		}},
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", got["name"])
	require.Equal(t, "Engineer", got["role"])
	require.Equal(t, "DazzloHR", got["brand"])
	require.Equal(t, "23rd July 2025", got["date"])
	require.Equal(t, "2025", got["year"])
	require.Equal(t, "a@x.com", got["email"])
	require.NotContains(t, got, "sender_name")
}

func TestRun_FieldsRenderAsLiteralText(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,slot\na@x.com,[Claim prize](https://evil.example),*Engineer*,Monday 10am\n"),
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SentCount)

	email := sess.sent[0]
	require.NotContains(t, email.HTML, `href="https://evil.example"`)
	require.Contains(t, email.HTML, "Hello [Claim prize](https://evil.example),")
	require.Contains(t, email.HTML, "*Engineer*")
	require.NotContains(t, email.HTML, "<em>")
	require.Contains(t, email.Text, "Hello [Claim prize](https://evil.example),")
	require.Equal(t, "Interview Shortlisting - *Engineer* - DazzloHR", email.Subject)
}

func TestRun_CongratulationsRenamesAttachments(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Congratulations)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	pdf := []byte("%PDF-1.4")
	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,company\nasha@x.com,Asha Rao,Designer,TechCorp Inc\n"),
		Spec:        s,
		Credentials: creds,
		Attachments: []mailer.Attachment{
			{Filename: "offer.pdf", ContentType: "application/pdf", Content: pdf},
			{Filename: "policies.pdf", ContentType: "application/pdf", Content: pdf},
			{Filename: "extra.pdf", ContentType: "application/pdf", Content: pdf},
			{Filename: "map.png", ContentType: "image/png", Content: pdf},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SentCount)

	email := sess.sent[0]
	require.Equal(t, "Congratulations! You're Selected at TechCorp Inc - Designer Position", email.Subject)

	names := make([]string, 0, len(email.Attachments))
	for _, a := range email.Attachments {
		names = append(names, a.Filename)
	}
	require.Equal(t, []string{
		"logo.png",
		"Offer_Letter_Asha_Rao.pdf",
		"Company_Policies_Asha_Rao.pdf",
		"Additional_Documents_Asha_Rao.pdf",
		"map.png",
	}, names)
}

func TestRun_PartnershipSender(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipEnterprises)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	_, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "ceo@acme.com,Acme Corp\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder", Email: "siddhant@dazzlo.co.in"},
	})
	require.NoError(t, err)

	email := sess.sent[0]
	require.Equal(t, "Strategic Partnership Opportunity - Dazzlo Enterprises Pvt Ltd", email.Subject)
	require.Contains(t, email.HTML, "Siddhant")
	require.Contains(t, email.HTML, "Founder")
	require.Contains(t, email.ReplyTo, "siddhant@dazzlo.co.in")
}

func TestRun_CustomLogo(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	_, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,company\na@x.com,Acme\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
		Logo:        jpeg,
	})
	require.NoError(t, err)

	logo := sess.sent[0].Attachments[0]
	require.Equal(t, "logo.jpg", logo.Filename)
	require.Equal(t, "image/jpeg", logo.ContentType)
	require.Equal(t, jpeg, logo.Content)
}

func TestRun_AttachmentLimits(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	chunk := make([]byte, 25<<20)
	batch := func(atts ...mailer.Attachment) dispatch.Batch {
		return dispatch.Batch{
			Records:     load(t, s, "email,company\na@x.com,Acme\n"),
			Spec:        s,
			Credentials: creds,
			Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
			Attachments: atts,
		}
	}

	t.Run("oversized file dropped", func(t *testing.T) {
		t.Parallel()

		sess := newSession("fake")
		sess.On("Send", mock.Anything, mock.Anything).Return(nil)
		tr := &mockTransport{}
		tr.On("Open", mock.Anything, creds).Return(sess, nil)

		summary, err := newDispatcher(tr).Run(context.Background(), batch(
			mailer.Attachment{Filename: "huge.pdf", Content: make([]byte, 26<<20)},
			mailer.Attachment{Filename: "small.pdf", Content: []byte("%PDF")},
		))
		require.NoError(t, err)
		require.Equal(t, 1, summary.SentCount)
		require.Len(t, summary.Warnings, 1)
		require.Contains(t, summary.Warnings[0], `"huge.pdf" is 26 MiB`)

		atts := sess.sent[0].Attachments
		require.Len(t, atts, 2)
		require.Equal(t, "small.pdf", atts[1].Filename)
	})

	t.Run("total above limit aborts", func(t *testing.T) {
		t.Parallel()

		tr := &mockTransport{}
		summary, err := newDispatcher(tr).Run(context.Background(), batch(
			mailer.Attachment{Filename: "a.pdf", Content: chunk},
			mailer.Attachment{Filename: "b.pdf", Content: chunk},
			mailer.Attachment{Filename: "c.pdf", Content: chunk},
			mailer.Attachment{Filename: "d.pdf", Content: chunk},
			mailer.Attachment{Filename: "e.pdf", Content: make([]byte, 1<<20)},
		))
		require.ErrorIs(t, err, dispatch.ErrAttachmentsTooLarge)
		require.Nil(t, summary)
		tr.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	})
}

func TestPrepareAttachments(t *testing.T) {
	t.Parallel()

	chunk := make([]byte, 25<<20)

	t.Run("exactly the total limit is accepted", func(t *testing.T) {
		t.Parallel()

		accepted, warnings, err := dispatch.PrepareAttachments([]mailer.Attachment{
			{Filename: "a.pdf", Content: chunk},
			{Filename: "b.pdf", Content: chunk},
			{Filename: "c.pdf", Content: chunk},
			{Filename: "d.pdf", Content: chunk},
		})
		require.NoError(t, err)
		require.Empty(t, warnings)
		require.Len(t, accepted, 4)
	})

	t.Run("per-file limit is inclusive", func(t *testing.T) {
		t.Parallel()

		accepted, warnings, err := dispatch.PrepareAttachments([]mailer.Attachment{
			{Filename: "edge.pdf", Content: chunk},
			{Filename: "over.pdf", Content: make([]byte, 25<<20+1)},
		})
		require.NoError(t, err)
		require.Len(t, accepted, 1)
		require.Len(t, warnings, 1)
		require.Contains(t, warnings[0], "over.pdf")
	})

	t.Run("inline content ids are cleared", func(t *testing.T) {
		t.Parallel()

		accepted, _, err := dispatch.PrepareAttachments([]mailer.Attachment{
			{Filename: "x.png", ContentID: "sneaky", Content: []byte("x")},
		})
		require.NoError(t, err)
		require.False(t, accepted[0].Inline())
	})

	t.Run("empty files are skipped", func(t *testing.T) {
		t.Parallel()

		accepted, warnings, err := dispatch.PrepareAttachments([]mailer.Attachment{{Filename: "empty.pdf"}})
		require.NoError(t, err)
		require.Empty(t, accepted)
		require.Equal(t, []string{`attachment "empty.pdf" is empty, skipped`}, warnings)
	})
}

func TestRun_Reuse(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	sess := newSession("smtp.zoho.in:465/ssl")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil).Once()

	var sleeps []time.Duration
	d := newDispatcher(tr,
		dispatch.WithStrategy(dispatch.Reuse),
		dispatch.WithSleep(func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
	)

	summary, err := d.Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\nc@x.com,C\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.SentCount)
	require.Equal(t, "smtp.zoho.in:465/ssl", summary.Transport)
	require.Equal(t, []time.Duration{dispatch.DefaultDelay, dispatch.DefaultDelay}, sleeps)
	require.Len(t, sess.sent, 3)
	tr.AssertExpectations(t)
	sess.AssertNumberOfCalls(t, "Close", 1)
}

func TestRun_ReuseOpenFailure(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).
		Return(nil, fmt.Errorf("smtp: all 2 candidates failed: %w", errors.Join(
			fmt.Errorf("a: %w", mailer.ErrTransport),
			fmt.Errorf("b: %w", mailer.ErrAuthentication),
		))).Once()

	summary, err := newDispatcher(tr, dispatch.WithStrategy(dispatch.Reuse), dispatch.WithDelay(0)).
		Run(context.Background(), dispatch.Batch{
			Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\n"),
			Spec:        s,
			Credentials: creds,
			Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
		})
	require.NoError(t, err)
	require.Equal(t, 2, summary.FailedCount)
	require.Empty(t, summary.Transport)
	for _, res := range summary.Results {
		require.Equal(t, mailer.ReasonAuthenticationFailed, res.Reason)
	}
	tr.AssertExpectations(t)
}

func TestRun_ReuseOpenFailureDoesNotWait(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.Interview)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).
		Return(nil, fmt.Errorf("smtp: auth: %w: 535", mailer.ErrAuthentication)).Once()

	var slept time.Duration
	d := newDispatcher(tr,
		dispatch.WithStrategy(dispatch.Reuse),
		dispatch.WithSleep(func(_ context.Context, d time.Duration) error {
			slept += d
			return nil
		}),
	)

	summary, err := d.Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,name,role,slot\na@x.com,A,Dev,Mon\nb@x.com,B,Dev,Tue\nc@x.com,C,Dev,Wed\n"),
		Spec:        s,
		Credentials: creds,
	})
	require.NoError(t, err)
	require.Equal(t, 3, summary.FailedCount)
	require.Zero(t, slept)
}

func TestRun_ReuseStopsWaitingAfterFailedRedial(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	first := &redialSession{newSession("first")}
	first.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	first.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: reset", mailer.ErrDisconnected)).Once()
	first.On("Redial", mock.Anything).Return(nil, fmt.Errorf("%w: refused", mailer.ErrTransport)).Once()

	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(first, nil).Once()

	var sleeps int
	d := newDispatcher(tr,
		dispatch.WithStrategy(dispatch.Reuse),
		dispatch.WithSleep(func(context.Context, time.Duration) error {
			sleeps++
			return nil
		}),
	)

	summary, err := d.Run(context.Background(), dispatch.Batch{
		Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\nc@x.com,C\nd@x.com,D\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SentCount)
	require.Equal(t, 3, summary.FailedCount)
	require.Equal(t, 1, sleeps)
}

func TestRun_ReuseRedialsOnceAfterDisconnect(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	dropped := fmt.Errorf("smtp: data: %w: EOF", mailer.ErrDisconnected)

	second := newSession("second")
	second.On("Send", mock.Anything, mock.Anything).Return(nil)

	first := &redialSession{newSession("first")}
	first.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	first.On("Send", mock.Anything, mock.Anything).Return(dropped).Once()
	first.On("Redial", mock.Anything).Return(second, nil).Once()

	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(first, nil).Once()

	summary, err := newDispatcher(tr, dispatch.WithStrategy(dispatch.Reuse), dispatch.WithDelay(0)).
		Run(context.Background(), dispatch.Batch{
			Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\nc@x.com,C\nd@x.com,D\n"),
			Spec:        s,
			Credentials: creds,
			Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
		})
	require.NoError(t, err)
	require.Equal(t, 3, summary.SentCount)
	require.Equal(t, 1, summary.FailedCount)
	require.Equal(t, mailer.ReasonTransportDisconnected, summary.Results[1].Reason)
	require.Equal(t, []string{"c@x.com", "d@x.com"}, []string{second.sent[0].To[0], second.sent[1].To[0]})
	tr.AssertExpectations(t)
	first.AssertExpectations(t)
}

func TestRun_ReuseRedialFailureFailsRemaining(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	first := &redialSession{newSession("first")}
	first.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: reset", mailer.ErrDisconnected)).Once()
	first.On("Redial", mock.Anything).Return(nil, fmt.Errorf("%w: refused", mailer.ErrTransport)).Once()

	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(first, nil).Once()

	summary, err := newDispatcher(tr, dispatch.WithStrategy(dispatch.Reuse), dispatch.WithDelay(0)).
		Run(context.Background(), dispatch.Batch{
			Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\nc@x.com,C\n"),
			Spec:        s,
			Credentials: creds,
			Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
		})
	require.NoError(t, err)
	require.Equal(t, 3, summary.FailedCount)
	require.Equal(t, mailer.ReasonTransportDisconnected, summary.Results[0].Reason)
	require.Equal(t, mailer.ReasonTransportError, summary.Results[1].Reason)
	require.Equal(t, mailer.ReasonTransportError, summary.Results[2].Reason)
	require.Len(t, first.sent, 1)
}

func TestRun_CanceledBetweenRecords(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { cancel() })
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	summary, err := newDispatcher(tr).Run(ctx, dispatch.Batch{
		Records:     load(t, s, "email,company\na@x.com,A\nb@x.com,B\n"),
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	require.Equal(t, 1, summary.SentCount)
	require.Len(t, summary.Results, 1)
	require.False(t, summary.FinishedAt.IsZero())
}

func TestRun_LoaderWarningsCarried(t *testing.T) {
	t.Parallel()

	s := spec(t, templates.PartnershipHR)
	sess := newSession("fake")
	sess.On("Send", mock.Anything, mock.Anything).Return(nil)
	tr := &mockTransport{}
	tr.On("Open", mock.Anything, creds).Return(sess, nil)

	res, err := recipients.Load(strings.NewReader("email,company\na@x.com,A\nbroken,B\n"), s.RequiredFields)
	require.NoError(t, err)

	summary, err := newDispatcher(tr).Run(context.Background(), dispatch.Batch{
		Records:     res.Records,
		Spec:        s,
		Credentials: creds,
		Sender:      dispatch.Sender{Name: "Siddhant", Designation: "Founder"},
		Warnings:    res.Warnings,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total())
	require.Equal(t, res.Warnings, summary.Warnings)
}
