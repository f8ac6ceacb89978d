package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claim keys carried by every token.
const (
	ClaimUserID    = "user_id"
	ClaimTokenType = "token_type"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenEncoding  = errors.New("invalid token encoding")
	ErrTokenHeader    = errors.New("unsupported token header")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpClaim  = errors.New("invalid token payload: exp")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenCodec signs and verifies HS256 tokens. Header and claims are
// serialized as compact JSON with sorted keys, so equal inputs at the same
// instant always produce the same token.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec builds a codec keyed by secret.
func NewTokenCodec(secret string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode stamps iat and exp onto a copy of claims and signs the result.
// claims must carry user_id and token_type; ttl must be at least a second.
func (c *TokenCodec) Encode(claims map[string]any, ttl time.Duration) (string, error) {
	token, _, err := c.encode(claims, ttl)
	return token, err
}

// encode signs claims and returns the exp it stamped.
func (c *TokenCodec) encode(claims map[string]any, ttl time.Duration) (string, time.Time, error) {
	if ttl < time.Second {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	for _, key := range []string{ClaimUserID, ClaimTokenType} {
		if _, ok := claims[key]; !ok {
			return "", time.Time{}, fmt.Errorf("token claims missing %q", key)
		}
	}

	now := c.now().Unix()
	exp := now + int64(ttl/time.Second)
	mapped := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		mapped[k] = v
	}
	mapped[ClaimIssuedAt] = now
	mapped[ClaimExpiresAt] = exp

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapped).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Unix(exp, 0).UTC(), nil
}

// Decode verifies token and returns its claims. Numeric claims are
// returned as json.Number.
func (c *TokenCodec) Decode(token string) (map[string]any, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithJSONNumber(),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, c.keyFunc); err != nil {
		return nil, translateJWTError(err)
	}

	exp, ok := claims[ClaimExpiresAt].(json.Number)
	if !ok {
		return nil, ErrTokenExpClaim
	}
	expUnix, err := exp.Int64()
	if err != nil {
		return nil, ErrTokenExpClaim
	}
	if c.now().Unix() >= expUnix {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, ErrTokenHeader
	}
	if typ, _ := t.Header["typ"].(string); typ != "JWT" {
		return nil, ErrTokenHeader
	}
	return c.secret, nil
}

func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenEncoding
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenHeader
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
