package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Transport implements mailer.Transport for a single SMTP endpoint.
type Transport struct {
	endpoint  Endpoint
	timeout   time.Duration
	tlsConfig *tls.Config
	now       func() time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout sets the bound for the dial and for each send. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithTLSConfig sets the TLS configuration. ServerName is filled from
// the endpoint host when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Transport) { t.tlsConfig = cfg }
}

// WithClock sets the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

// New creates a transport dialing endpoint.
func New(endpoint Endpoint, opts ...Option) *Transport {
	t := &Transport{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Endpoint returns the server this transport dials.
func (t *Transport) Endpoint() Endpoint {
	return t.endpoint
}

// String describes the transport by its endpoint, e.g. "smtp.zoho.in:465/ssl".
func (t *Transport) String() string {
	return t.endpoint.String()
}

// Open implements mailer.Transport: dial, secure, authenticate.
func (t *Transport) Open(ctx context.Context, creds mailer.Credentials) (mailer.Session, error) {
	sess, err := t.open(ctx, creds)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (t *Transport) open(ctx context.Context, creds mailer.Credentials) (*Session, error) {
	host := t.endpoint.Host
	dialer := net.Dialer{Timeout: t.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", t.endpoint.Addr())
	if err != nil {
		return nil, classify(stageConnect, err)
	}
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	if t.endpoint.Security == SecuritySSL {
		tlsConn := tls.Client(conn, t.tls())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, classify(stageTLS, err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, classify(stageConnect, err)
	}

	fail := func(st stage, err error) (*Session, error) {
		_ = c.Close()
		return nil, classify(st, err)
	}

	if t.endpoint.Security == SecurityStartTLS {
		ok, _ := c.Extension("STARTTLS")
		if !ok {
			return fail(stageTLS, fmt.Errorf("%s does not support STARTTLS", t.endpoint.Addr()))
		}
		if err := c.StartTLS(t.tls()); err != nil {
			return fail(stageTLS, err)
		}
	}

	if _, secure := c.TLSConnectionState(); !secure && !isLoopback(host) {
		return fail(stageAuth, ErrAuthRequiresTLS)
	}

	ok, mechanisms := c.Extension("AUTH")
	if !ok {
		return fail(stageAuth, fmt.Errorf("%s does not advertise AUTH", t.endpoint.Addr()))
	}
	if err := c.Auth(chooseAuth(mechanisms, creds.Email, creds.Password, host)); err != nil {
		return fail(stageAuth, err)
	}

	_ = conn.SetDeadline(time.Time{})

	return &Session{
		transport: t,
		creds:     creds,
		client:    c,
		conn:      conn,
	}, nil
}

func (t *Transport) tls() *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.tlsConfig != nil {
		cfg = t.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = t.endpoint.Host
	}
	return cfg
}

// Session is an authenticated SMTP connection. It is not safe for
// concurrent use.
type Session struct {
	transport *Transport
	creds     mailer.Credentials
	client    *smtp.Client
	conn      net.Conn
	broken    bool
}

// Endpoint returns the server the session is connected to.
func (s *Session) Endpoint() Endpoint {
	return s.transport.endpoint
}

// String describes the session by its endpoint, e.g. "smtp.zoho.in:465/ssl".
func (s *Session) String() string {
	return s.transport.endpoint.String()
}

// Send implements mailer.Sender. An empty From is filled with the
// authenticated address. On success email.MessageID holds the ID sent.
func (s *Session) Send(ctx context.Context, email *mailer.Email) error {
	if s.broken {
		return fmt.Errorf("smtp: %w: session unusable after earlier failure", mailer.ErrDisconnected)
	}

	e := *email
	if e.From == "" {
		e.From = s.creds.Email
	}
	msg, err := mailer.Build(&e, s.transport.now())
	if err != nil {
		return err
	}

	_ = s.conn.SetDeadline(time.Now().Add(s.transport.timeout))
	defer func() { _ = s.conn.SetDeadline(time.Time{}) }()
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := s.client.Mail(msg.From); err != nil {
		return s.fail(stageMail, err)
	}
	for _, rcpt := range msg.To {
		if err := s.client.Rcpt(rcpt); err != nil {
			return s.fail(stageRcpt, err)
		}
	}

	w, err := s.client.Data()
	if err != nil {
		return s.fail(stageData, err)
	}
	if _, err := w.Write(msg.Data); err != nil {
		_ = w.Close()
		return s.fail(stageData, err)
	}
	if err := w.Close(); err != nil {
		return s.fail(stageData, err)
	}

	email.MessageID = msg.ID
	return nil
}

// fail classifies err and leaves the session ready for the next message
// when the server only refused this one.
func (s *Session) fail(st stage, err error) error {
	classified := classify(st, err)
	if !isReply(err) || sentinelFor(st, err) == mailer.ErrDisconnected {
		s.broken = true
		return classified
	}
	if rerr := s.client.Reset(); rerr != nil {
		s.broken = true
	}
	return classified
}

// Redial implements mailer.Redialer.
func (s *Session) Redial(ctx context.Context) (mailer.Session, error) {
	return s.transport.Open(ctx, s.creds)
}

// Close implements mailer.Session. QUIT is best-effort.
func (s *Session) Close() error {
	if s.broken {
		_ = s.client.Close()
		return nil
	}
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
	}
	return nil
}

// Ping dials the endpoint, reads the greeting and quits without
// authenticating. Used by readiness checks.
func (t *Transport) Ping(ctx context.Context) error {
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.endpoint.Addr())
	if err != nil {
		return classify(stageConnect, err)
	}
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	if t.endpoint.Security == SecuritySSL {
		tlsConn := tls.Client(conn, t.tls())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return classify(stageTLS, err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, t.endpoint.Host)
	if err != nil {
		_ = conn.Close()
		return classify(stageConnect, err)
	}
	if err := c.Quit(); err != nil {
		_ = c.Close()
	}
	return nil
}
