package smtp

import (
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// loginAuth implements the LOGIN mechanism, which net/smtp does not ship.
type loginAuth struct {
	username, password string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLoopback(server.Name) {
		return "", nil, errors.New("unencrypted connection")
	}
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
	case "username:":
		return []byte(a.username), nil
	case "password:":
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("unexpected LOGIN challenge %q", fromServer)
	}
}

// chooseAuth prefers PLAIN and falls back to LOGIN when only that is advertised.
func chooseAuth(mechanisms, username, password, host string) smtp.Auth {
	for _, m := range strings.Fields(strings.ToUpper(mechanisms)) {
		if m == "PLAIN" {
			return smtp.PlainAuth("", username, password, host)
		}
	}
	for _, m := range strings.Fields(strings.ToUpper(mechanisms)) {
		if m == "LOGIN" {
			return &loginAuth{username: username, password: password}
		}
	}
	return smtp.PlainAuth("", username, password, host)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
