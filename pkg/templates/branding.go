package templates

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Profile names a letterhead.
type Profile string

// Letterhead profiles.
const (
	ProfileEnterprises Profile = "enterprises"
	ProfileHR          Profile = "hr"
)

// LogoContentID is the Content-ID the layouts reference as "cid:company_logo".
const LogoContentID = "company_logo"

//go:embed assets/logo.png
var defaultLogo []byte

// Branding is the letterhead identity rendered around every body.
type Branding struct {
	Name     string `yaml:"name"`
	Tagline  string `yaml:"tagline"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Location string `yaml:"location"`
	Website  string `yaml:"website"`
	LogoFile string `yaml:"logo_file"`

	Logo []byte `yaml:"-"`
}

// Fields returns the branding values exposed to subjects, bodies and layouts.
func (b Branding) Fields() map[string]string {
	return map[string]string{
		"brand":          b.Name,
		"tagline":        b.Tagline,
		"brand_email":    b.Email,
		"brand_phone":    b.Phone,
		"brand_location": b.Location,
		"brand_website":  b.Website,
	}
}

// Config holds both letterhead profiles.
type Config struct {
	Enterprises Branding `yaml:"enterprises"`
	HR          Branding `yaml:"hr"`
}

// DefaultConfig returns the built-in profiles with the embedded logo.
func DefaultConfig() Config {
	return Config{
		Enterprises: Branding{
			Name:     "Dazzlo Enterprises Pvt Ltd",
			Tagline:  "Redefining lifestyle with Innovations and Dreams",
			Email:    "info@dazzlo.co.in",
			Phone:    "+91 9373015503",
			Location: "Kalyan, Maharashtra 421301",
			Website:  "www.dazzlo.co.in",
			Logo:     defaultLogo,
		},
		HR: Branding{
			Name:     "DazzloHR",
			Tagline:  "Connecting talent with opportunity",
			Email:    "info@dazzlohr.in",
			Phone:    "+91 9373015503",
			Location: "Kalyan, Maharashtra 421301",
			Website:  "www.dazzlohr.in",
			Logo:     defaultLogo,
		},
	}
}

// Profile returns the branding for p. Unknown profiles get the HR letterhead.
func (c Config) Profile(p Profile) Branding {
	if p == ProfileEnterprises {
		return c.Enterprises
	}
	return c.HR
}

// LoadConfig overlays YAML from r onto the default profiles. Fields absent
// from the document keep their defaults. Logo files are not read here.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidBranding, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: %v", ErrInvalidBranding, err)
	}
	return cfg, nil
}
