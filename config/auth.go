package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses Google OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// StateBackend selects where pending authorization states are kept.
type StateBackend string

const (
	// StateBackendMemory keeps states in process memory (single replica only).
	StateBackendMemory StateBackend = "memory"
	// StateBackendRedis keeps states in redis so any replica can finish a login.
	StateBackendRedis StateBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StateBackend.
func (b *StateBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = StateBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StateBackend: %q (valid options: memory, redis)", v)
	}
}

// OAuthConfig contains Google OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/google/callback"`
	Scopes       []string `env:"SCOPES"        envDefault:"openid,profile,email" envSeparator:","`
	Issuer       string   `env:"ISSUER"        envDefault:"https://accounts.google.com"`
	Prompt       string   `env:"PROMPT"        envDefault:"select_account"`
}

// Validate reports missing credentials. A provider that fails validation is
// reported unavailable rather than stopping the process.
func (c OAuthConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if strings.TrimSpace(c.RedirectURL) == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URL is required"))
	}
	return errors.Join(errs...)
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Subject     string `env:"SUBJECT" envDefault:"dev-user"`
	Email       string `env:"EMAIL"   envDefault:"dev@example.com"`
	DisplayName string `env:"NAME"    envDefault:"Dev User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"GOOGLE_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// StateTTL bounds how long a login attempt may take.
	StateTTL time.Duration `env:"AUTH_STATE_TTL" envDefault:"5m"`

	// StateBackend selects the state store implementation.
	StateBackend StateBackend `env:"AUTH_STATE_BACKEND" envDefault:"memory"`

	// StateSweepInterval is how often expired states are swept in the background.
	StateSweepInterval time.Duration `env:"AUTH_STATE_SWEEP_INTERVAL" envDefault:"1m"`

	// SessionTTL is the lifetime of a session and of its cookie.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// FailurePath is where failed logins are redirected with ?error=<reason>.
	FailurePath string `env:"AUTH_FAILURE_PATH" envDefault:"/login"`

	// LoginRatePerSec and LoginBurst bound login initiations per client IP.
	LoginRatePerSec float64 `env:"AUTH_LOGIN_RATE_PER_SEC" envDefault:"1"`
	LoginBurst      int     `env:"AUTH_LOGIN_BURST"        envDefault:"10"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = AuthModeOAuth
	}
	if c.StateBackend == "" {
		c.StateBackend = StateBackendMemory
	}
	if c.StateTTL <= 0 {
		c.StateTTL = 5 * time.Minute
	}
	if c.StateSweepInterval <= 0 {
		c.StateSweepInterval = time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	c.FailurePath = strings.TrimSpace(c.FailurePath)
	if !strings.HasPrefix(c.FailurePath, "/") || strings.HasPrefix(c.FailurePath, "//") {
		c.FailurePath = "/login"
	}
	if c.LoginRatePerSec < 0 {
		c.LoginRatePerSec = 0
	}
	if c.LoginBurst < 1 {
		c.LoginBurst = 1
	}
	c.OAuth.Issuer = strings.TrimRight(strings.TrimSpace(c.OAuth.Issuer), "/")
}
