package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default validity periods applied when the configuration leaves them unset.
const (
	DefaultAccessTokenTTL = 60 * time.Minute
	DefaultVerifyTokenTTL = 60 * time.Minute
)

// TokenKind distinguishes the two credentials the service issues.
type TokenKind string

const (
	// TokenKindAccess authorises API operations on behalf of a user.
	TokenKindAccess TokenKind = "access"
	// TokenKindVerify authorises the unverified -> verified transition.
	TokenKindVerify TokenKind = "verify"
)

// ErrTokenInvalid covers every verification failure: bad signature, malformed
// structure, expiry, wrong kind, or missing subject. Callers must not be able
// to tell these apart.
var ErrTokenInvalid = errors.New("token: invalid")

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	VerifyTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims represents the custom claims embedded in issued tokens.
type Claims struct {
	UserID string    `json:"uid"`
	Kind   TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the signed, self-contained credentials
// used for API access and email verification.
type TokenService struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	verifyTTL time.Duration
	now       func() time.Time
}

// NewTokenService constructs a TokenService instance when provided with the required configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: secret must be provided")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	verifyTTL := cfg.VerifyTokenTTL
	if verifyTTL <= 0 {
		verifyTTL = DefaultVerifyTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: accessTTL,
		verifyTTL: verifyTTL,
		now:       now,
	}, nil
}

// IssueAccessToken signs a short-lived credential authorising API calls.
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, TokenKindAccess, s.accessTTL)
}

// IssueVerifyToken signs a credential authorising exactly one email
// verification transition.
func (s *TokenService) IssueVerifyToken(userID string) (string, error) {
	return s.issue(userID, TokenKindVerify, s.verifyTTL)
}

func (s *TokenService) issue(userID string, kind TokenKind, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token: user id is required")
	}

	now := s.now()

	claims := &Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a signed token, requiring the supplied kind.
// The kind check lives here rather than at call sites so presenting a verify
// token to an access endpoint (or vice versa) can never slip through a new
// caller. Every failure is reported as ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	if claims.UserID == "" || claims.Kind != kind {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
