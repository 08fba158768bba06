// Package auth chooses the outbound Authorization header for a provider call.
package auth

import (
	"context"
	"encoding/base64"
	"strings"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/config"
	"monoova-gateway/internal/models"
)

// Scheme is how a path family authenticates
type Scheme int

const (
	// SchemeAPIKey is Basic base64(apiKey + ":")
	SchemeAPIKey Scheme = iota
	// SchemeAccount is Basic base64(mAccount + ":" + apiKey)
	SchemeAccount
	// SchemeBearer is a client-credentials token
	SchemeBearer
)

func (s Scheme) String() string {
	switch s {
	case SchemeAccount:
		return "basic-account"
	case SchemeBearer:
		return "bearer"
	default:
		return "basic-apikey"
	}
}

// Route maps a lower-case path prefix to a scheme
type Route struct {
	Prefix string
	Scheme Scheme
}

// DefaultRoutes lists the path families with non-default schemes.
// Anything unmatched uses SchemeAPIKey.
var DefaultRoutes = []Route{
	{Prefix: "payto", Scheme: SchemeBearer},
	{Prefix: "cards", Scheme: SchemeBearer},
	{Prefix: "authorisation", Scheme: SchemeAccount},
	{Prefix: "authorization", Scheme: SchemeAccount},
}

// CredentialSource returns the configured credentials for an environment
type CredentialSource interface {
	Environment(env models.Environment) config.Credentials
}

// BearerSource issues bearer tokens
type BearerSource interface {
	GetToken(ctx context.Context, env models.Environment) (string, error)
}

// Resolver builds Authorization headers. It keeps no state between calls.
type Resolver struct {
	credentials CredentialSource
	tokens      BearerSource
	routes      []Route
}

// NewResolver creates a resolver using DefaultRoutes
func NewResolver(credentials CredentialSource, tokens BearerSource) *Resolver {
	return &Resolver{
		credentials: credentials,
		tokens:      tokens,
		routes:      DefaultRoutes,
	}
}

// WithRoutes replaces the route table
func (r *Resolver) WithRoutes(routes []Route) *Resolver {
	r.routes = routes
	return r
}

// SchemeForPath returns the scheme the first matching route assigns to path
func (r *Resolver) SchemeForPath(path string) Scheme {
	p := strings.ToLower(strings.TrimLeft(strings.TrimSpace(path), "/"))
	for _, route := range r.routes {
		if strings.HasPrefix(p, route.Prefix) {
			return route.Scheme
		}
	}
	return SchemeAPIKey
}

// HeaderForPath returns the full Authorization header value for a call to path
func (r *Resolver) HeaderForPath(ctx context.Context, path string, env models.Environment) (string, error) {
	switch r.SchemeForPath(path) {
	case SchemeBearer:
		if r.tokens == nil {
			return "", errors.ConfigError("no bearer token source configured")
		}
		token, err := r.tokens.GetToken(ctx, env)
		if err != nil {
			return "", err
		}
		return "Bearer " + token, nil
	case SchemeAccount:
		return AccountBasic(r.credentials.Environment(env), env)
	default:
		creds := r.credentials.Environment(env)
		if creds.APIKey == "" {
			return "", errors.MissingCredential("apiKey", env.String())
		}
		return basic(creds.APIKey, ""), nil
	}
}

// AccountBasic is the Basic header used by the token endpoint
func AccountBasic(creds config.Credentials, env models.Environment) (string, error) {
	if creds.MAccount == "" {
		return "", errors.MissingCredential("mAccount", env.String())
	}
	if creds.APIKey == "" {
		return "", errors.MissingCredential("apiKey", env.String())
	}
	return basic(creds.MAccount, creds.APIKey), nil
}

func basic(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
