package smtp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"syscall"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// ErrAuthRequiresTLS is returned when credentials would travel in the clear.
var ErrAuthRequiresTLS = errors.New("smtp: refusing to authenticate without TLS")

// ErrNoCandidates is returned by Failover when it has nothing to try.
var ErrNoCandidates = errors.New("smtp: no candidate servers")

type stage string

const (
	stageConnect stage = "connect"
	stageTLS     stage = "tls"
	stageAuth    stage = "auth"
	stageMail    stage = "mail from"
	stageRcpt    stage = "rcpt to"
	stageData    stage = "data"
)

// classify wraps err with the mailer delivery sentinel matching the
// SMTP reply code or network condition at the given stage.
func classify(st stage, err error) error {
	return fmt.Errorf("smtp: %s: %w: %w", st, sentinelFor(st, err), err)
}

func sentinelFor(st stage, err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		switch {
		case reply.Code == 421:
			return mailer.ErrDisconnected
		case st == stageAuth && reply.Code >= 500:
			return mailer.ErrAuthentication
		case st == stageRcpt && reply.Code >= 500:
			return mailer.ErrRecipientRejected
		default:
			return mailer.ErrTransport
		}
	}
	if isDisconnect(err) {
		return mailer.ErrDisconnected
	}
	return mailer.ErrTransport
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// isReply reports whether err is a server reply, meaning the connection
// itself is still usable.
func isReply(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply)
}
