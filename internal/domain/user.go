package domain

import "time"

// User is an account that can buy, sell, review and chat.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Phone        string
	IsStaff      bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// UserRef is the public projection of a user embedded in other resources.
type UserRef struct {
	ID       int64
	Username string
}

// Ref returns the public projection of the user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
