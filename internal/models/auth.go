package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest replaces the caller's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=CurrentPassword"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FullName  string   `json:"full_name"`
	Role      UserRole `json:"role"`
	StudentID *string  `json:"student_id,omitempty"`
	TeacherID *string  `json:"teacher_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	FullName  string   `json:"full_name"`
	StudentID string   `json:"student_id,omitempty"`
	TeacherID string   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the acting identity carried by the token.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, StudentID: c.StudentID, TeacherID: c.TeacherID}
}
