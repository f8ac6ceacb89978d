package dto

import "time"

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest identifies the account by username or email, not both.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokensResponse holds an access/refresh pair.
type TokensResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResponse standard response for register and login.
type AuthResponse struct {
	User   ProfileResponse `json:"user"`
	Tokens TokensResponse  `json:"tokens"`
}

// AccessTokenResponse is returned by the refresh endpoint.
type AccessTokenResponse struct {
	Access string `json:"access"`
}

// ProfileResponse is the private view of the caller's account.
type ProfileResponse struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login"`
	Phone      *string    `json:"phone"`
}

// ProfileUpdateRequest lists editable profile fields; omitted fields are kept.
type ProfileUpdateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

// UserRef is the public projection of a user.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
