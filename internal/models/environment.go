package models

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Environment selects the provider base URL, credential set and cache partition
type Environment string

const (
	Sandbox Environment = "sandbox"
	Live    Environment = "live"
)

// EnvironmentCookie is read when the request path does not name an environment
const EnvironmentCookie = "environment"

// Environments lists every supported environment
var Environments = []Environment{Sandbox, Live}

// ParseEnvironment accepts "sandbox" or "live" in any case
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Sandbox:
		return Sandbox, nil
	case Live:
		return Live, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

func (e Environment) String() string {
	return string(e)
}

// ResolveEnvironment picks the environment for r: the {env} route variable,
// then the first path segment, then the environment cookie. Sandbox otherwise.
func ResolveEnvironment(r *http.Request) Environment {
	if v, ok := mux.Vars(r)["env"]; ok {
		if env, err := ParseEnvironment(v); err == nil {
			return env
		}
	}

	segment := strings.TrimPrefix(r.URL.Path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if env, err := ParseEnvironment(segment); err == nil {
		return env
	}

	if cookie, err := r.Cookie(EnvironmentCookie); err == nil {
		if env, err := ParseEnvironment(cookie.Value); err == nil {
			return env
		}
	}

	return Sandbox
}

// KeyKind names a piece of provider key material
type KeyKind string

const (
	WebhookSigningCertificate KeyKind = "webhook-signing-certificate"
	EncryptionPublicKey       KeyKind = "encryption-public-key"
)

func (k KeyKind) String() string {
	return string(k)
}
