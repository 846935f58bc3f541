package model

import "time"

// Role is either admin or student.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// AdminID is the identity of the single fixed administrator account.
const AdminID = "admin"

// AdminName is the display name used for the administrator.
const AdminName = "Admin"

// User is a student account. The admin is not stored as a user record.
type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Name          string          `json:"name"`
	Role          Role            `json:"role"`
	PasswordHash  string          `json:"-"`
	JoinedClasses map[string]bool `json:"joined_classes,omitempty"`
	IsOnline      bool            `json:"is_online"`
	LastActive    *time.Time      `json:"last_active,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// IsAdmin reports whether the actor is the administrator.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CreateStudentRequest is the payload for creating a student account.
type CreateStudentRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,alphanum"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// StudentLoginRequest is the payload for student login.
type StudentLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginRequest is the payload for admin login.
type AdminLoginRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PresenceEntry is the presence view of one user for the admin stream.
type PresenceEntry struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Name       string     `json:"name"`
	IsOnline   bool       `json:"is_online"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// SetAICredentialRequest is the payload for configuring the AI key.
type SetAICredentialRequest struct {
	APIKey string `json:"api_key" binding:"required,min=1,max=500"`
}
