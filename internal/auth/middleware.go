package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/domain"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

const principalKey = "auth_principal"

var errMissingCredentials = errors.New("missing bearer credentials")

// Principal represents the authenticated caller.
type Principal struct {
	User   *domain.User
	Claims *Claims
}

// ID returns the caller's user id.
func (p *Principal) ID() int64 {
	return p.User.ID
}

// IsStaff reports whether the caller holds the privileged override.
func (p *Principal) IsStaff() bool {
	return p != nil && p.User != nil && p.User.IsStaff
}

// CanActOn reports whether the caller owns the resource or is staff.
func (p *Principal) CanActOn(ownerID int64) bool {
	if p == nil || p.User == nil {
		return false
	}
	return p.User.IsStaff || p.User.ID == ownerID
}

// UserLookup resolves token subjects to users.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// AuthGate validates bearer tokens and loads principals.
type AuthGate struct {
	tokens *TokenManager
	users  UserLookup
	logger *zap.Logger
}

// NewAuthGate constructs middleware.
func NewAuthGate(tokens *TokenManager, users UserLookup, logger *zap.Logger) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes.
func (g *AuthGate) Handle(c *fiber.Ctx) error {
	principal, err := g.resolve(c)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		g.logger.Debug("authentication failed", zap.String("path", c.Path()), zap.Error(err))
		return apperrors.NewUnauthorized("authentication credentials were not provided or are invalid")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional resolves a principal when valid credentials are present and
// otherwise continues anonymously. It never fails the request.
func (g *AuthGate) Optional(c *fiber.Ctx) error {
	principal, err := g.resolve(c)
	if err == nil {
		c.Locals(principalKey, principal)
	} else if !errors.Is(err, errMissingCredentials) {
		g.logger.Debug("optional authentication ignored", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Next()
}

func (g *AuthGate) resolve(c *fiber.Ctx) (*Principal, error) {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return nil, err
	}

	claims, err := g.tokens.Verify(token, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("token subject not found")
		}
		return nil, apperrors.MapError(err)
	}
	return &Principal{User: user, Claims: claims}, nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingCredentials
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("authorization scheme is not Bearer")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated caller, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok && principal != nil
}

// PrincipalID adapts PrincipalFromContext for the request logger.
func PrincipalID(c *fiber.Ctx) (int64, bool) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return 0, false
	}
	return principal.ID(), true
}
