package resend

// Config holds Resend API configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// APIKey authenticates every request. When empty, the password of the
	// per-batch credentials is used as the key.
	APIKey string `env:"RESEND_API_KEY"`
	// SenderName is used in From when the message does not set one.
	SenderName string `env:"RESEND_FROM_NAME"`
	// BaseURL overrides the API endpoint. Default: the client's own.
	BaseURL string `env:"RESEND_BASE_URL"`
}
