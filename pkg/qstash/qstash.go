package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	issuer          = "Upstash"
)

var (
	ErrMissingSignature = errors.New("qstash signature is missing")
	ErrInvalidSignature = errors.New("qstash signature is invalid")
)

type Config struct {
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	ClockTolerance    time.Duration `split_words:"true" default:"5s"`
}

// Verifier checks webhook deliveries signed by QStash. The signature is an
// HS256 JWT whose `body` claim is the base64url SHA-256 of the request body.
type Verifier struct {
	currentSigningKey string
	nextSigningKey    string
	leeway            time.Duration
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func NewVerifier(cfg Config) (*Verifier, error) {
	current := strings.TrimSpace(cfg.CurrentSigningKey)
	next := strings.TrimSpace(cfg.NextSigningKey)
	if current == "" && next == "" {
		return nil, errors.New("qstash signing key is required")
	}

	return &Verifier{
		currentSigningKey: current,
		nextSigningKey:    next,
		leeway:            cfg.ClockTolerance,
	}, nil
}

func MustNew(cfg Config) *Verifier {
	v, err := NewVerifier(cfg)
	if err != nil {
		panic(err)
	}
	return v
}

// Verify accepts the signature if either signing key validates it. url may be
// empty to skip the subject check.
func (v *Verifier) Verify(signature string, body []byte, url string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	var lastErr error
	for _, key := range []string{v.currentSigningKey, v.nextSigningKey} {
		if key == "" {
			continue
		}
		err := v.verifyWithKey(key, signature, body, url)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(key, signature string, body []byte, url string) error {
	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return err
	}

	if url != "" && claims.Subject != url {
		return fmt.Errorf("subject mismatch: %q", claims.Subject)
	}

	sum := sha256.Sum256(body)
	want := base64.URLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != strings.TrimRight(want, "=") {
		return errors.New("body hash mismatch")
	}
	return nil
}
