package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

var errIncompleteCreds = errors.New("credentials file must contain \"email\" and \"password\"")

// loadCredentials reads {"email": "...", "password": "..."} from path.
// BULKMAIL_EMAIL and BULKMAIL_PASSWORD are used when path is empty.
func loadCredentials(path string, getenv func(string) string) (mailer.Credentials, error) {
	var creds mailer.Credentials
	if path == "" {
		creds.Email = getenv("BULKMAIL_EMAIL")
		creds.Password = getenv("BULKMAIL_PASSWORD")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return creds, fmt.Errorf("read credentials: %w", err)
		}
		var raw struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return creds, fmt.Errorf("decode %s: %w", path, err)
		}
		creds.Email, creds.Password = raw.Email, raw.Password
	}

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return mailer.Credentials{}, errIncompleteCreds
	}
	return creds, nil
}
