package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/auth"
	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

const (
	maxUsernameLength = 150
	maxPhoneLength    = 32

	invalidRefreshToken = "refresh token is invalid or expired"
)

// AuthService coordinates registration, login, refresh and profile flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
	now        func() time.Time
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	BcryptCost int
	Clock      func() time.Time
	Logger     *zap.Logger
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput identifies the account by exactly one of Username or Email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// ProfileUpdate lists the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Phone    *string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		bcryptCost: deps.BcryptCost,
		now:        clock,
		logger:     orNop(deps.Logger),
	}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, domain.TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	problems := map[string]any{}
	if msg := validateUsername(username); msg != "" {
		problems["username"] = msg
	}
	if msg := validateEmail(email); msg != "" {
		problems["email"] = msg
	}
	if len(in.Password) < auth.MinPasswordLength || len(in.Password) > auth.MaxPasswordLength {
		problems["password"] = auth.ErrPasswordLength.Error()
	}
	if len(problems) == 0 {
		if err := s.checkAvailable(ctx, 0, &username, &email, problems); err != nil {
			return nil, domain.TokenPair{}, err
		}
	}
	if len(problems) > 0 {
		return nil, domain.TokenPair{}, apperrors.NewValidationError("invalid registration", problems)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	now := s.now().UTC()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		LastLogin:    &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.TokenPair{}, duplicateAsConflict(err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.User, domain.TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if (username == "") == (email == "") {
		return nil, domain.TokenPair{}, apperrors.NewValidationError(
			"provide either 'username' or 'email', but not both", nil)
	}
	if in.Password == "" {
		return nil, domain.TokenPair{}, apperrors.NewValidationError("password is required", nil)
	}

	var (
		user *domain.User
		err  error
	)
	if username != "" {
		user, err = s.users.GetByUsername(ctx, username)
	} else {
		user, err = s.users.GetByEmail(ctx, email)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.TokenPair{}, err
	}
	if user == nil || !auth.PasswordMatches(user.PasswordHash, in.Password) {
		return nil, domain.TokenPair{}, apperrors.NewUnauthorized("invalid credentials")
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, domain.TokenPair{}, err
	}
	user.LastLogin = &now

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, apperrors.NewValidationError("refresh_token is required", nil)
	}
	claims, err := s.tokens.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		s.logger.Debug("refresh token rejected", zap.Error(err))
		return "", time.Time{}, apperrors.NewUnauthorized(invalidRefreshToken)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("refresh token subject not found", zap.Int64("user_id", claims.UserID))
			return "", time.Time{}, apperrors.NewUnauthorized(invalidRefreshToken)
		}
		return "", time.Time{}, err
	}
	return s.tokens.Issue(user.ID, domain.TokenKindAccess)
}

// UpdateProfile applies the non-nil fields of update to user.
func (s *AuthService) UpdateProfile(ctx context.Context, user *domain.User, update ProfileUpdate) (*domain.User, error) {
	updated := *user
	problems := map[string]any{}

	if update.Username != nil {
		updated.Username = strings.TrimSpace(*update.Username)
		if msg := validateUsername(updated.Username); msg != "" {
			problems["username"] = msg
		}
	}
	if update.Email != nil {
		updated.Email = strings.TrimSpace(*update.Email)
		if msg := validateEmail(updated.Email); msg != "" {
			problems["email"] = msg
		}
	}
	if update.Phone != nil {
		updated.Phone = strings.TrimSpace(*update.Phone)
		if len(updated.Phone) > maxPhoneLength {
			problems["phone"] = "phone must be at most 32 characters"
		}
	}
	if len(problems) == 0 {
		var username, email *string
		if update.Username != nil && updated.Username != user.Username {
			username = &updated.Username
		}
		if update.Email != nil && updated.Email != user.Email {
			email = &updated.Email
		}
		if err := s.checkAvailable(ctx, user.ID, username, email, problems); err != nil {
			return nil, err
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid profile update", problems)
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, duplicateAsConflict(err)
	}
	return &updated, nil
}

// checkAvailable records a problem for each of username and email already
// held by an account other than selfID.
func (s *AuthService) checkAvailable(ctx context.Context, selfID int64, username, email *string, problems map[string]any) error {
	if username != nil {
		existing, err := s.users.GetByUsername(ctx, *username)
		switch {
		case err == nil && existing.ID != selfID:
			problems["username"] = "username already taken"
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return err
		}
	}
	if email != nil {
		existing, err := s.users.GetByEmail(ctx, *email)
		switch {
		case err == nil && existing.ID != selfID:
			problems["email"] = "email already registered"
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return err
		}
	}
	return nil
}

func validateUsername(username string) string {
	switch {
	case username == "":
		return "username is required"
	case len(username) > maxUsernameLength:
		return "username must be at most 150 characters"
	}
	return ""
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "enter a valid email address"
	}
	return ""
}

func duplicateAsConflict(err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return apperrors.NewConflict("resource already exists", map[string]any{"constraint": dup.Constraint})
	}
	return err
}
