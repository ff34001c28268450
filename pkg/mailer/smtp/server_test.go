package smtp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal in-process submission server.
type fakeServer struct {
	ln         net.Listener
	tlsConfig  *tls.Config
	implicit   bool
	startTLS   bool
	mechanisms string
	user, pass string
	rejectRcpt map[string]bool
	dropOnMail int // drop the connection on the n-th MAIL command

	mu        sync.Mutex
	mailCount int
	messages  []receivedMessage
}

type receivedMessage struct {
	from string
	to   []string
	data string
}

type serverOption func(*fakeServer)

func withImplicitTLS(cfg *tls.Config) serverOption {
	return func(s *fakeServer) { s.tlsConfig, s.implicit = cfg, true }
}

func withStartTLS(cfg *tls.Config) serverOption {
	return func(s *fakeServer) { s.tlsConfig, s.startTLS = cfg, true }
}

func withMechanisms(m string) serverOption {
	return func(s *fakeServer) { s.mechanisms = m }
}

func withRejectedRecipient(addr string) serverOption {
	return func(s *fakeServer) { s.rejectRcpt[addr] = true }
}

func withDropOnMail(n int) serverOption {
	return func(s *fakeServer) { s.dropOnMail = n }
}

func startFakeServer(t *testing.T, opts ...serverOption) *fakeServer {
	t.Helper()

	s := &fakeServer{
		mechanisms: "PLAIN LOGIN",
		user:       "hr@dazzlohr.in",
		pass:       "app-password",
		rejectRcpt: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if s.implicit {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.ln = ln
	t.Cleanup(func() { _ = ln.Close() })

	go s.serve()
	return s
}

func (s *fakeServer) endpoint(sec Security) Endpoint {
	host, port, _ := net.SplitHostPort(s.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return Endpoint{Host: host, Port: p, Security: sec}
}

func (s *fakeServer) received() []receivedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedMessage(nil), s.messages...)
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	tp := textproto.NewConn(conn)
	secure := s.implicit
	var from string
	var to []string

	_ = tp.PrintfLine("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(verb) {
		case "EHLO":
			ext := []string{"fake"}
			if s.startTLS && !secure {
				ext = append(ext, "STARTTLS")
			}
			if s.mechanisms != "" {
				ext = append(ext, "AUTH "+s.mechanisms)
			}
			ext = append(ext, "8BITMIME")
			for i, e := range ext {
				sep := "-"
				if i == len(ext)-1 {
					sep = " "
				}
				_ = tp.PrintfLine("250%s%s", sep, e)
			}
		case "HELO", "NOOP":
			_ = tp.PrintfLine("250 ok")
		case "STARTTLS":
			_ = tp.PrintfLine("220 ready")
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(conn)
			secure = true
		case "AUTH":
			user, pass, ok := s.readAuth(tp, arg)
			if ok && user == s.user && pass == s.pass {
				_ = tp.PrintfLine("235 2.7.0 authenticated")
			} else {
				_ = tp.PrintfLine("535 5.7.8 authentication failed")
			}
		case "MAIL":
			s.mu.Lock()
			s.mailCount++
			n := s.mailCount
			s.mu.Unlock()
			if s.dropOnMail > 0 && n == s.dropOnMail {
				return
			}
			from, to = addrOf(arg), nil
			_ = tp.PrintfLine("250 ok")
		case "RCPT":
			addr := addrOf(arg)
			if s.rejectRcpt[addr] {
				_ = tp.PrintfLine("550 5.1.1 mailbox unavailable")
				continue
			}
			to = append(to, addr)
			_ = tp.PrintfLine("250 ok")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.messages = append(s.messages, receivedMessage{from: from, to: to, data: string(data)})
			s.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "RSET":
			from, to = "", nil
			_ = tp.PrintfLine("250 ok")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("500 unrecognized")
		}
	}
}

func (s *fakeServer) readAuth(tp *textproto.Conn, arg string) (string, string, bool) {
	mech, initial, _ := strings.Cut(arg, " ")

	switch strings.ToUpper(mech) {
	case "PLAIN":
		if initial == "" {
			_ = tp.PrintfLine("334 ")
			line, err := tp.ReadLine()
			if err != nil {
				return "", "", false
			}
			initial = line
		}
		raw, err := base64.StdEncoding.DecodeString(initial)
		if err != nil {
			return "", "", false
		}
		parts := strings.Split(string(raw), "\x00")
		if len(parts) != 3 {
			return "", "", false
		}
		return parts[1], parts[2], true
	case "LOGIN":
		user, ok := challenge(tp, "Username:")
		if !ok {
			return "", "", false
		}
		pass, ok := challenge(tp, "Password:")
		return user, pass, ok
	default:
		return "", "", false
	}
}

func challenge(tp *textproto.Conn, prompt string) (string, bool) {
	_ = tp.PrintfLine("334 %s", base64.StdEncoding.EncodeToString([]byte(prompt)))
	line, err := tp.ReadLine()
	if err != nil {
		return "", false
	}
	v, err := base64.StdEncoding.DecodeString(line)
	return string(v), err == nil
}

func addrOf(arg string) string {
	_, v, _ := strings.Cut(arg, ":")
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ' '); i >= 0 {
		v = v[:i]
	}
	return strings.Trim(v, "<>")
}

// testTLS returns a server config with a self-signed certificate for
// 127.0.0.1 and a client config trusting it.
func testTLS(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "fake smtp"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	server = &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
	client = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return server, client
}

// closedEndpoint returns a loopback address nothing listens on.
func closedEndpoint(t *testing.T) Endpoint {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())
	p, _ := strconv.Atoi(port)
	return Endpoint{Host: host, Port: p, Security: SecurityNone}
}
