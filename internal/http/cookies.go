package httpx

import (
	"net/http"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
)

// SessionCookieName is the cookie carrying the opaque session id.
const SessionCookieName = "session_id"

// CookiePolicy holds the attributes applied to the session cookie.
type CookiePolicy struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.SameSite == 0 || p.SameSite == http.SameSiteDefaultMode {
		return http.SameSiteLaxMode
	}
	return p.SameSite
}

// setSessionCookie writes the session cookie. Max-Age never outlives the session itself.
func (p CookiePolicy) setSessionCookie(w http.ResponseWriter, s domainauth.Session, now time.Time) {
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = domainauth.DefaultSessionTTL
	}
	if remaining := s.ExpiresAt.Sub(now); remaining < maxAge {
		maxAge = remaining
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.sameSite(),
		MaxAge:   int(maxAge.Seconds()),
	})
}

// clearSessionCookie expires the session cookie, mirroring the attributes used when setting it.
func (p CookiePolicy) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.sameSite(),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// sessionIDFromRequest returns the session cookie value, or "" when absent.
func sessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
