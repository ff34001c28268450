package storage

// Config holds S3-compatible object storage settings used to resolve
// "s3://bucket/key" attachment references.
type Config struct {
	// AccessKey is the access key ID (required for s3:// references).
	AccessKey string `env:"S3_ACCESS_KEY"`

	// SecretKey is the secret access key (required for s3:// references).
	SecretKey string `env:"S3_SECRET_KEY"`

	// Endpoint is a custom endpoint URL, e.g. for MinIO or R2 (optional).
	Endpoint string `env:"S3_ENDPOINT"`

	// Region is the bucket region (default: us-east-1).
	Region string `env:"S3_REGION" envDefault:"us-east-1"`

	// PathStyle enables path-style URLs (required for MinIO).
	PathStyle bool `env:"S3_PATH_STYLE"`
}

// Enabled reports whether credentials are configured.
func (c Config) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// FileInfo describes a loaded file.
type FileInfo struct {
	// Name is the file name shown to recipients.
	Name string

	// ContentType is the detected MIME type.
	ContentType string

	// Size is the file size in bytes.
	Size int64
}

// Default configuration values.
const (
	DefaultRegion = "us-east-1"

	// DefaultMaxReadSize bounds how much of a single file is read into
	// memory. The mail size policy is applied later, per batch.
	DefaultMaxReadSize int64 = 128 << 20
)

// applyDefaults fills in default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// validate checks that required configuration fields are set.
func (c *Config) validate() error {
	if !c.Enabled() {
		return ErrInvalidConfig
	}
	return nil
}
