package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SameSite is the SameSite attribute applied to the session cookie.
type SameSite string

const (
	SameSiteLax  SameSite = "lax"
	SameSiteNone SameSite = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for SameSite.
func (s *SameSite) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "lax", "none":
		*s = SameSite(v)
		return nil
	default:
		return fmt.Errorf("invalid SameSite: %q (valid options: lax, none)", v)
	}
}

// Mode returns the net/http representation.
func (s SameSite) Mode() http.SameSite {
	if s == SameSiteNone {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks the session cookie Secure. Only disable for plain-HTTP local development.
	CookieSecure bool `env:"APP_COOKIE_SECURE" envDefault:"true"`

	// CookieSameSite is lax (default) or none for cross-site frontends.
	CookieSameSite SameSite `env:"APP_COOKIE_SAMESITE" envDefault:"lax"`

	// TLSCertFile and TLSKeyFile switch the server to HTTPS when both are set.
	TLSCertFile string `env:"HTTP_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"HTTP_TLS_KEY_FILE"`

	// TrustForwardedFor keys per-client limits on X-Forwarded-For. Enable only behind a trusted proxy.
	TrustForwardedFor bool `env:"HTTP_TRUST_FORWARDED_FOR" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT"        envDefault:"30s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT"       envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT"        envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = ":8080"
	}
	if h.CookieSameSite == "" {
		h.CookieSameSite = SameSiteLax
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if h.CookieSameSite == SameSiteNone {
		h.CookieSecure = true
	}
	h.TLSCertFile = strings.TrimSpace(h.TLSCertFile)
	h.TLSKeyFile = strings.TrimSpace(h.TLSKeyFile)
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// TLSEnabled reports whether both certificate and key are configured.
func (h *HTTPConfig) TLSEnabled() bool {
	return h.TLSCertFile != "" && h.TLSKeyFile != ""
}
