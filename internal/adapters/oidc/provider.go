package oidc

// Package oidc provides the Google OpenID Connect adapter for the login flow.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/milestono/api/internal/domain/auth"
	"github.com/milestono/api/internal/ports"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the issuer URL used when none is configured.
const GoogleIssuer = "https://accounts.google.com"

var _ ports.AuthProvider = (*Provider)(nil)

// Provider implements ports.AuthProvider using OIDC discovery and the authorization code flow.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	prompt     string

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	Issuer       string // defaults to GoogleIssuer; a discovery URL is accepted too
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string // defaults to openid, email, profile
	Prompt       string   // optional prompt parameter, e.g. "select_account"
	HTTPClient   *http.Client
}

// DiscoveryDocument represents the subset of the OIDC discovery document we read.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider performs discovery against the issuer and returns a ready provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = GoogleIssuer
	}
	issuer = strings.TrimSuffix(issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}

	op, err := gooidc.NewProvider(context.WithValue(ctx, oauth2.HTTPClient, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		httpClient:   httpClient,
		prompt:       cfg.Prompt,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL builds the authorization URL. oauth2 adds client_id, redirect_uri,
// response_type=code, scope and state.
func (p *Provider) AuthCodeURL(in ports.BeginInput) string {
	opts := []oauth2.AuthCodeOption{}
	if in.Nonce != "" {
		opts = append(opts, gooidc.Nonce(in.Nonce))
	}
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	return p.config.AuthCodeURL(in.State, opts...)
}

// Exchange trades the code for tokens, verifies the ID token against the nonce,
// and fills anything missing from the userinfo endpoint.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	if in.Code == "" {
		return domainauth.ExternalIdentity{}, errors.New("authorization code is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.ExternalIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.verifyIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.ExternalIdentity{}, err
	}

	if claims.Sub == "" || claims.Email == "" {
		ui, uiErr := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if uiErr != nil {
			return domainauth.ExternalIdentity{}, fmt.Errorf("fetch user info: %w", uiErr)
		}
		var uc googleClaims
		if claimsErr := ui.Claims(&uc); claimsErr != nil {
			return domainauth.ExternalIdentity{}, fmt.Errorf("decode user info: %w", claimsErr)
		}
		claims.fillFrom(uc)
	}

	if claims.Sub == "" {
		return domainauth.ExternalIdentity{}, errors.New("provider returned no subject")
	}
	return claims.identity(), nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (googleClaims, error) {
	var c googleClaims
	if !p.hasOpenIDScope() {
		return c, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return c, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return c, fmt.Errorf("verify id_token: %w", err)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return c, errors.New("id_token nonce mismatch")
	}
	if claimsErr := idTok.Claims(&c); claimsErr != nil {
		return c, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return c, nil
}

func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == gooidc.ScopeOpenID {
			return true
		}
	}
	return false
}

// googleClaims is the claim set Google returns in both the ID token and userinfo.
// email_verified arrives as a bool from Google but as a string from some proxies.
type googleClaims struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
}

func (c *googleClaims) fillFrom(o googleClaims) {
	if c.Sub == "" {
		c.Sub = o.Sub
	}
	if c.Email == "" {
		c.Email = o.Email
		c.EmailVerified = o.EmailVerified
	}
	if c.Name == "" {
		c.Name = o.Name
	}
	if c.GivenName == "" {
		c.GivenName = o.GivenName
	}
	if c.FamilyName == "" {
		c.FamilyName = o.FamilyName
	}
}

func (c googleClaims) identity() domainauth.ExternalIdentity {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	return domainauth.ExternalIdentity{
		Subject:       c.Sub,
		Email:         domainauth.NormalizeEmail(c.Email),
		DisplayName:   name,
		EmailVerified: bool(c.EmailVerified),
	}
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
