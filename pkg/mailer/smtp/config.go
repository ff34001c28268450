package smtp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Security selects how the connection is encrypted.
type Security string

const (
	// SecuritySSL wraps the connection in TLS before the greeting (port 465).
	SecuritySSL Security = "ssl"
	// SecurityStartTLS upgrades a plain connection with STARTTLS (port 587).
	SecurityStartTLS Security = "starttls"
	// SecurityNone sends in the clear. Only loopback hosts may authenticate this way.
	SecurityNone Security = "none"
)

// Endpoint is a submission server address.
type Endpoint struct {
	Host     string
	Port     int
	Security Security
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Addr() + "/" + string(e.Security)
}

// UnmarshalText parses "host:port[/security]". Without an explicit
// security, port 465 means ssl and every other port starttls.
func (e *Endpoint) UnmarshalText(text []byte) error {
	parsed, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEndpoint parses "host:port[/security]".
func ParseEndpoint(s string) (Endpoint, error) {
	addr, sec, _ := strings.Cut(strings.TrimSpace(s), "/")

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("smtp: invalid endpoint %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("smtp: invalid port in %q", s)
	}

	e := Endpoint{Host: host, Port: port, Security: Security(strings.ToLower(sec))}
	switch e.Security {
	case "":
		e.Security = SecurityStartTLS
		if port == 465 {
			e.Security = SecuritySSL
		}
	case SecuritySSL, SecurityStartTLS, SecurityNone:
	default:
		return Endpoint{}, fmt.Errorf("smtp: unknown security %q in %q", sec, s)
	}
	return e, nil
}

// DefaultCandidates is the probing order used when none is configured.
var DefaultCandidates = []Endpoint{
	{Host: "smtp.zoho.com", Port: 587, Security: SecurityStartTLS},
	{Host: "smtp.zoho.in", Port: 587, Security: SecurityStartTLS},
	{Host: "smtppro.zoho.com", Port: 587, Security: SecurityStartTLS},
	{Host: "smtp.zoho.com", Port: 465, Security: SecuritySSL},
	{Host: "smtp.zoho.in", Port: 465, Security: SecuritySSL},
	{Host: "mail.dazzlo.co.in", Port: 587, Security: SecurityStartTLS},
	{Host: "smtp.dazzlo.co.in", Port: 587, Security: SecurityStartTLS},
}

// DefaultTimeout bounds every network operation.
const DefaultTimeout = 15 * time.Second

// Config holds SMTP transport configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	Host     string        `env:"SMTP_HOST" envDefault:"smtp.zoho.in"`
	Port     int           `env:"SMTP_PORT" envDefault:"465"`
	Security Security      `env:"SMTP_SECURITY" envDefault:"ssl"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"15s"`

	// Candidates is the ordered list tried when sessions are reused.
	// Empty means DefaultCandidates.
	Candidates []Endpoint `env:"SMTP_CANDIDATES" envSeparator:","`
}

// Endpoint returns the single server used for per-message delivery.
func (c Config) Endpoint() Endpoint {
	return Endpoint{Host: c.Host, Port: c.Port, Security: c.Security}
}

// CandidateList returns the configured candidates or DefaultCandidates.
func (c Config) CandidateList() []Endpoint {
	if len(c.Candidates) == 0 {
		return DefaultCandidates
	}
	return c.Candidates
}
