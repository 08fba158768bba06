package signature

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/keys"
	"monoova-gateway/internal/metrics"
	"monoova-gateway/internal/models"
)

// Outcome is the result of verifying one webhook. It is either accepted or
// rejected with a code and a reason.
type Outcome struct {
	Accepted bool
	Code     string
	Reason   string
	// Header is the matched signature header, empty when none matched.
	Header string
}

// Accepted returns an accepting outcome
func Accepted(header string) Outcome {
	return Outcome{Accepted: true, Header: header}
}

// Rejected returns a rejecting outcome
func Rejected(code, reason string) Outcome {
	return Outcome{Code: code, Reason: reason}
}

func (o Outcome) String() string {
	if o.Accepted {
		return "accepted"
	}
	return "rejected: " + o.Reason
}

// CertificateSource returns the current webhook-signing certificate
type CertificateSource interface {
	Get(ctx context.Context, env models.Environment, kind models.KeyKind) (*keys.Handle, error)
}

// Verifier checks webhook signatures
type Verifier struct {
	certs  CertificateSource
	config Config
	logger logging.Logger
	now    func() time.Time
}

// NewVerifier creates a verifier. Empty config fields take their defaults.
func NewVerifier(certs CertificateSource, config Config) *Verifier {
	config.SetDefaults()
	return &Verifier{
		certs:  certs,
		config: config,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "webhook-verifier"}),
		now:    time.Now,
	}
}

// Verify decides whether body, as received, was signed by the provider for env
func (v *Verifier) Verify(ctx context.Context, body []byte, headers http.Header, env models.Environment) Outcome {
	outcome := v.verify(ctx, body, headers, env)

	metrics.ObserveVerification(env.String(), outcome.Accepted, outcome.Code)
	if outcome.Accepted {
		v.logger.WithContext(ctx).Debug("Webhook signature accepted",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Field{Key: "header", Value: outcome.Header},
		)
	} else {
		v.logger.WithContext(ctx).Warn("Webhook signature rejected",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Field{Key: "header", Value: outcome.Header},
			logging.Field{Key: "code", Value: outcome.Code},
			logging.Field{Key: "reason", Value: outcome.Reason},
		)
	}
	return outcome
}

func (v *Verifier) verify(ctx context.Context, body []byte, headers http.Header, env models.Environment) Outcome {
	lowered := lowerHeaders(headers)

	name, value := firstPresent(lowered, v.config.HeaderAliases)
	if name == "" {
		return Rejected(errors.CodeSignatureMissing, "missing signature header")
	}

	sig, err := DecodeSignature(value)
	if err != nil {
		return withHeader(Rejected(errors.CodeSignatureMalformed, "malformed signature"), name)
	}

	if !v.fresh(lowered) {
		return withHeader(Rejected(errors.CodeTimestampSkewExceeded, "timestamp too far from now"), name)
	}

	handle, err := v.certs.Get(ctx, env, models.WebhookSigningCertificate)
	if err != nil {
		return withHeader(Rejected(errors.CodeCertificateUnavailable, "certificate fetch/parse failed: "+err.Error()), name)
	}

	return withHeader(verifyPKCS1(handle.PublicKey, body, sig), name)
}

// fresh is false only when a numeric timestamp is present and too far from now
func (v *Verifier) fresh(lowered map[string]string) bool {
	_, value := firstPresent(lowered, v.config.TimestampHeaders)
	if value == "" {
		return true
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.logger.Debug("Ignoring non-numeric webhook timestamp", logging.Field{Key: "value", Value: value})
		return true
	}

	skew := v.now().UnixMilli() - ts
	if skew < 0 {
		skew = -skew
	}
	return skew <= v.config.MaxSkew.Milliseconds()
}

func verifyPKCS1(pub *rsa.PublicKey, body, sig []byte) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Rejected(errors.CodeVerifyException, fmt.Sprintf("verify failed: %v", r))
		}
	}()

	if pub == nil {
		return Rejected(errors.CodeVerifyException, "verify failed: no public key")
	}

	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		if err == rsa.ErrVerification {
			return Rejected(errors.CodeSignatureInvalid, "invalid signature")
		}
		return Rejected(errors.CodeVerifyException, "verify failed: "+err.Error())
	}
	return Accepted("")
}

func withHeader(o Outcome, header string) Outcome {
	o.Header = header
	return o
}

// lowerHeaders maps lower-cased names to their first non-empty trimmed value
func lowerHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		key := strings.ToLower(strings.TrimSpace(name))
		if out[key] != "" {
			continue
		}
		for _, value := range values {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				out[key] = trimmed
				break
			}
		}
	}
	return out
}

func firstPresent(lowered map[string]string, names []string) (string, string) {
	for _, name := range names {
		if value := lowered[name]; value != "" {
			return name, value
		}
	}
	return "", ""
}
