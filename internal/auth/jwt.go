// Package auth provides signed token issuing, password hashing and the
// bearer-token middleware for protected routes.
//
// TOKEN PURPOSES:
// Three independent trust domains share the same token format:
//
//	session            → access token sent as "Authorization: Bearer <jwt>"
//	email-confirmation → mailed activation link, 1 day
//	password-reset     → mailed reset link, 10 minutes
//
// Each TokenService holds the secret of exactly one purpose and stamps the
// purpose into the "aud" claim. A token minted for one purpose never
// validates in another: the secret differs and the audience check fails.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","aud":["session"],"exp":...,"iat":...,"iss":"shortify"}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "shortify"

// Purpose names the trust domain a token belongs to.
type Purpose string

const (
	PurposeSession      Purpose = "session"
	PurposeConfirmation Purpose = "email-confirmation"
	PurposeReset        Purpose = "password-reset"
)

// Default lifetimes for the mailed tokens.
const (
	ConfirmationTTL = 24 * time.Hour
	ResetTTL        = 600 * time.Second
)

// ErrInvalidToken is returned by Verify for every failure: bad signature,
// expiry, malformed input, wrong purpose. Callers must not try to tell them apart.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService issues and verifies HS256 tokens for one purpose.
type TokenService struct {
	purpose Purpose
	secret  []byte
	ttl     time.Duration
}

// NewTokenService creates a TokenService for the given purpose.
// The secret must be at least 16 characters; ttl must be positive.
func NewTokenService(purpose Purpose, secret string, ttl time.Duration) (*TokenService, error) {
	if purpose == "" {
		return nil, errors.New("auth: token purpose is required")
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("auth: %s secret must be at least 16 characters", purpose)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: %s ttl must be positive", purpose)
	}
	return &TokenService{purpose: purpose, secret: []byte(secret), ttl: ttl}, nil
}

// Purpose reports which trust domain this service signs for.
func (s *TokenService) Purpose() Purpose {
	return s.purpose
}

// TTL is the lifetime applied by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue signs a token for subject with the service's default lifetime.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. A negative ttl yields an
// already expired token, which tests use to exercise expiry.
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject is required")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(s.purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", s.purpose, err)
	}
	return signed, nil
}

// Verify parses tokenStr and returns its subject. Any failure yields
// ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(string(s.purpose)),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// Issuers bundles the three token services the auth workflow needs.
type Issuers struct {
	Session      *TokenService
	Confirmation *TokenService
	Reset        *TokenService
}

// NewIssuers builds the session, confirmation and reset services.
// The three secrets must differ from each other.
func NewIssuers(sessionSecret string, sessionTTL time.Duration, mailSecret, resetSecret string) (*Issuers, error) {
	if sessionSecret == mailSecret || sessionSecret == resetSecret || mailSecret == resetSecret {
		return nil, errors.New("auth: session, confirmation and reset secrets must be distinct")
	}

	session, err := NewTokenService(PurposeSession, sessionSecret, sessionTTL)
	if err != nil {
		return nil, err
	}
	confirmation, err := NewTokenService(PurposeConfirmation, mailSecret, ConfirmationTTL)
	if err != nil {
		return nil, err
	}
	reset, err := NewTokenService(PurposeReset, resetSecret, ResetTTL)
	if err != nil {
		return nil, err
	}

	return &Issuers{Session: session, Confirmation: confirmation, Reset: reset}, nil
}
