// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/mailer/resend"
	"github.com/dazzlo/bulkmail/pkg/mailer/smtp"
	"github.com/dazzlo/bulkmail/pkg/storage"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// ErrInvalidConfig is returned when the environment holds an unusable value.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Transport names.
const (
	TransportSMTP   = "smtp"
	TransportResend = "resend"
)

// Config is the full application configuration.
type Config struct {
	// Transport selects the delivery backend: smtp or resend.
	Transport string `env:"BULKMAIL_TRANSPORT" envDefault:"smtp"`
	// Strategy is per_message or reuse.
	Strategy dispatch.Strategy `env:"BULKMAIL_STRATEGY" envDefault:"per_message"`
	// Delay between messages. Unset keeps the strategy default; "0"
	// disables the pause.
	Delay *time.Duration `env:"BULKMAIL_DELAY"`
	// BrandingFile is an optional YAML file overriding the letterhead profiles.
	BrandingFile string `env:"BULKMAIL_BRANDING_FILE"`
	ButtonColor  string `env:"BULKMAIL_BUTTON_COLOR"`
	// SPFCheck warns when the sender domain's SPF record names none of SPFIncludes.
	SPFCheck    bool     `env:"BULKMAIL_SPF_CHECK" envDefault:"true"`
	SPFIncludes []string `env:"BULKMAIL_SPF_INCLUDES" envSeparator:"," envDefault:"zoho.in,zoho.com"`

	HTTP   HTTP
	Log    logger.Config
	SMTP   smtp.Config
	Resend resend.Config
	S3     storage.Config
}

// HTTP configures the web server.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	MaxUploadSize   int64         `env:"HTTP_MAX_UPLOAD_SIZE" envDefault:"134217728"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"HTTP_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env (when present) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the process environment without touching .env.
func Parse() (Config, error) {
	return ParseFrom(nil)
}

// ParseFrom parses the given variables. A nil map means the process environment.
func ParseFrom(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Transport {
	case TransportSMTP, TransportResend:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.Delay != nil && *c.Delay < 0 {
		return fmt.Errorf("%w: negative delay %s", ErrInvalidConfig, *c.Delay)
	}
	if c.HTTP.MaxUploadSize <= 0 {
		return fmt.Errorf("%w: HTTP_MAX_UPLOAD_SIZE must be positive", ErrInvalidConfig)
	}
	return nil
}

// Branding returns the letterhead profiles. Without BrandingFile the
// built-in profiles are used. A profile's logo_file is resolved relative
// to the branding file and replaces the built-in logo.
func (c Config) Branding() (templates.Config, error) {
	if c.BrandingFile == "" {
		return templates.DefaultConfig(), nil
	}
	return LoadBranding(c.BrandingFile)
}

// LoadBranding reads a branding YAML file and the logos it references.
func LoadBranding(path string) (templates.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return templates.Config{}, fmt.Errorf("config: open branding file: %w", err)
	}
	defer f.Close()

	cfg, err := templates.LoadConfig(f)
	if err != nil {
		return templates.Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, b := range []*templates.Branding{&cfg.Enterprises, &cfg.HR} {
		if b.LogoFile == "" {
			continue
		}
		logo := b.LogoFile
		if !filepath.IsAbs(logo) {
			logo = filepath.Join(dir, logo)
		}
		data, err := os.ReadFile(logo)
		if err != nil {
			return templates.Config{}, fmt.Errorf("config: read logo for %s: %w", b.Name, err)
		}
		b.Logo = data
	}
	return cfg, nil
}

// DispatchOptions returns the dispatcher options implied by the configuration.
func (c Config) DispatchOptions() []dispatch.Option {
	opts := []dispatch.Option{dispatch.WithStrategy(c.Strategy)}
	if c.Delay != nil {
		opts = append(opts, dispatch.WithDelay(*c.Delay))
	}
	return opts
}
