package devauth

// Package devauth provides a config-driven AuthProvider for local development.

import (
	"context"
	"errors"
	"net/url"
	"strings"

	domainauth "github.com/milestono/api/internal/domain/auth"
	"github.com/milestono/api/internal/ports"
)

// DevCode is the only authorization code the dev provider accepts.
const DevCode = "dev"

// Config controls the dev auth provider behavior.
type Config struct {
	Subject     string
	Email       string
	DisplayName string
	// CallbackPath is where AuthCodeURL sends the browser; defaults to /auth/google/callback.
	CallbackPath string
}

var _ ports.AuthProvider = (*Provider)(nil)

// Provider short-circuits the OAuth round trip by redirecting straight back to our
// callback with the issued state. State validation still happens in the flow.
type Provider struct {
	identity     domainauth.ExternalIdentity
	callbackPath string
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if strings.TrimSpace(cfg.Email) == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	path := cfg.CallbackPath
	if path == "" {
		path = "/auth/google/callback"
	}
	return &Provider{
		identity: domainauth.ExternalIdentity{
			Subject:       cfg.Subject,
			Email:         domainauth.NormalizeEmail(cfg.Email),
			DisplayName:   cfg.DisplayName,
			EmailVerified: true,
		},
		callbackPath: path,
	}, nil
}

// AuthCodeURL returns the local callback URL carrying the dev code and the issued state.
func (p *Provider) AuthCodeURL(in ports.BeginInput) string {
	q := url.Values{}
	q.Set("code", DevCode)
	q.Set("state", in.State)
	return p.callbackPath + "?" + q.Encode()
}

// Exchange returns the configured identity for the dev code.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	if in.Code != DevCode {
		return domainauth.ExternalIdentity{}, errors.New("dev auth: unexpected authorization code")
	}
	return p.identity, nil
}
