package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type is the closed set of credential kinds issued by the engine. Every
// verification site switches exhaustively on it; adding a kind must force
// each consumer to handle it.
type Type string

const (
	TypeAccess        Type = "access"
	TypeRefresh       Type = "refresh"
	TypeResetPassword Type = "reset_password"
	TypeVerifyAccount Type = "verify_account"
)

// Valid reports whether t is one of the four known kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeResetPassword, TypeVerifyAccount:
		return true
	}
	return false
}

// Signed reports whether credentials of this kind are self-verifying JWTs.
// Reset and verification codes are opaque store-backed identifiers.
func (t Type) Signed() bool {
	switch t {
	case TypeAccess, TypeRefresh:
		return true
	case TypeResetPassword, TypeVerifyAccount:
		return false
	}
	return false
}

var (
	// ErrInvalid is the single verification failure returned for any bad
	// token: wrong signature, expired, malformed, or type mismatch.
	ErrInvalid = errors.New("invalid token")
	// ErrNotSigned is returned when a signed-token operation is attempted
	// with an opaque code kind.
	ErrNotSigned = errors.New("token kind is not a signed token")
)

// Claims is the decoded payload of an access or refresh token.
type Claims struct {
	Subject   string
	TokenType Type
	ExpiresAt time.Time
}

type wireClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Config holds the signing parameters. Secret is the process-wide HMAC key;
// its absence is a fatal configuration error at engine construction.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec issues and verifies signed tokens with a fixed algorithm (HS256).
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: access and refresh TTL must be positive")
	}
	return &Codec{config: cfg}, nil
}

// IssueAccess signs an access token for subject expiring after the
// configured access TTL.
func (c *Codec) IssueAccess(subject string) (string, error) {
	return c.issue(subject, TypeAccess, c.config.AccessTTL)
}

// IssueRefresh signs a refresh token for subject expiring after the
// configured refresh TTL.
func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.issue(subject, TypeRefresh, c.config.RefreshTTL)
}

func (c *Codec) issue(subject string, kind Type, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token: empty subject")
	}
	if !kind.Signed() {
		return "", ErrNotSigned
	}

	now := time.Now()
	claims := wireClaims{
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

// Verify decodes tokenStr, checks signature integrity and expiry, and
// requires the embedded type to equal expected. Any failure yields ErrInvalid.
func (c *Codec) Verify(tokenStr string, expected Type) (*Claims, error) {
	if !expected.Valid() || !expected.Signed() {
		return nil, ErrInvalid
	}

	claims, err := c.parse(tokenStr)
	if err != nil {
		return nil, ErrInvalid
	}
	if claims.TokenType != expected {
		return nil, ErrInvalid
	}
	return claims, nil
}

// ExpiresAt extracts the expiry of a signed token for blacklist bookkeeping.
// Unlike Verify it does not care about the token type, but the token must
// still carry a valid signature: revoking a malformed token is an error.
func (c *Codec) ExpiresAt(tokenStr string) (time.Time, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	return claims.ExpiresAt, nil
}

func (c *Codec) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	wire, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if wire.Subject == "" || wire.ExpiresAt == nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	kind := Type(wire.TokenType)
	if !kind.Valid() || !kind.Signed() {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &Claims{
		Subject:   wire.Subject,
		TokenType: kind,
		ExpiresAt: wire.ExpiresAt.Time,
	}, nil
}

// NewOpaqueCode returns a random opaque identifier for reset and
// verification flows. The code carries no claims; the mapping to an email
// lives only in the ephemeral store.
func NewOpaqueCode() string {
	return uuid.NewString()
}
