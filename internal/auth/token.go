package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

var (
	// ErrTokenKind is returned when a valid token is presented where the
	// other kind is required.
	ErrTokenKind = errors.New("token kind mismatch")
	// ErrTokenSubject is returned when user_id is missing or not an integer.
	ErrTokenSubject = errors.New("invalid token payload: user_id")
)

// Claims is the verified content of a token.
type Claims struct {
	UserID    int64
	Kind      domain.TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Raw       map[string]any
}

// TokenManager issues and verifies access and refresh tokens.
type TokenManager struct {
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(codec *TokenCodec, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue signs a token of the given kind for userID.
func (tm *TokenManager) Issue(userID int64, kind domain.TokenKind) (string, time.Time, error) {
	ttl := tm.accessTTL
	if kind == domain.TokenKindRefresh {
		ttl = tm.refreshTTL
	}
	return tm.codec.encode(map[string]any{
		ClaimUserID:    userID,
		ClaimTokenType: string(kind),
	}, ttl)
}

// IssuePair signs an access and a refresh token for userID.
func (tm *TokenManager) IssuePair(userID int64) (domain.TokenPair, error) {
	access, accessExp, err := tm.Issue(userID, domain.TokenKindAccess)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := tm.Issue(userID, domain.TokenKindRefresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return domain.TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify decodes token and checks that it is of the wanted kind.
func (tm *TokenManager) Verify(token string, want domain.TokenKind) (*Claims, error) {
	raw, err := tm.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	kind, _ := raw[ClaimTokenType].(string)
	if domain.TokenKind(kind) != want {
		return nil, ErrTokenKind
	}

	userID, err := numberClaim(raw, ClaimUserID)
	if err != nil {
		return nil, ErrTokenSubject
	}
	iat, _ := numberClaim(raw, ClaimIssuedAt)
	exp, _ := numberClaim(raw, ClaimExpiresAt)

	return &Claims{
		UserID:    userID,
		Kind:      want,
		IssuedAt:  time.Unix(iat, 0).UTC(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
		Raw:       raw,
	}, nil
}

func numberClaim(raw map[string]any, key string) (int64, error) {
	n, ok := raw[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("claim %q is not a number", key)
	}
	return n.Int64()
}
