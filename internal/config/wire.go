package config

import (
	"fmt"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/health"
	"github.com/dazzlo/bulkmail/pkg/mailer"
	"github.com/dazzlo/bulkmail/pkg/mailer/resend"
	"github.com/dazzlo/bulkmail/pkg/mailer/smtp"
	"github.com/dazzlo/bulkmail/pkg/storage"
)

// MailTransport builds the configured transport. SMTP with the reuse
// strategy tries the candidate list in order; per-message delivery dials the
// single configured endpoint.
func (c Config) MailTransport() mailer.Transport {
	if c.Transport == TransportResend {
		return resend.New(c.Resend)
	}
	opts := []smtp.Option{smtp.WithTimeout(c.SMTP.Timeout)}
	if c.Strategy == dispatch.Reuse {
		return smtp.NewFailover(c.SMTP.CandidateList(), opts...)
	}
	return smtp.New(c.SMTP.Endpoint(), opts...)
}

// ReadinessChecks returns the checks behind /health/ready.
func (c Config) ReadinessChecks() health.Checks {
	if c.Transport != TransportSMTP {
		return health.Checks{}
	}
	opts := []smtp.Option{smtp.WithTimeout(c.SMTP.Timeout)}
	if c.Strategy == dispatch.Reuse {
		candidates := c.SMTP.CandidateList()
		checks := make([]health.CheckFunc, 0, len(candidates))
		for _, e := range candidates {
			checks = append(checks, health.PingCheck(smtp.New(e, opts...)))
		}
		return health.Checks{"smtp": health.AnyOf(checks...)}
	}
	return health.Checks{"smtp": health.PingCheck(smtp.New(c.SMTP.Endpoint(), opts...))}
}

// AttachmentLoader returns a loader for local paths and URLs, with s3://
// references enabled when S3 credentials are configured.
func (c Config) AttachmentLoader(opts ...storage.LoaderOption) (*storage.Loader, error) {
	if c.S3.Enabled() {
		store, err := storage.NewS3(c.S3)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts = append([]storage.LoaderOption{storage.WithS3(store)}, opts...)
	}
	return storage.NewLoader(opts...), nil
}
