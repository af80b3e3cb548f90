package models

import "time"

// UserRole represents the available roles for the portal.
type UserRole string

const (
	// RoleAdmin marks editorial staff accounts.
	RoleAdmin UserRole = "ADMIN"
	// RoleReviewer marks accounts that may be assigned papers to review.
	RoleReviewer UserRole = "REVIEWER"
	// RoleAuthor marks regular student accounts submitting papers.
	RoleAuthor UserRole = "AUTHOR"
)

// User represents an application user stored in the users table.
// City, street and number feed the generated declaration documents.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	City         string     `db:"city" json:"city"`
	Street       string     `db:"street" json:"street"`
	Number       string     `db:"number" json:"number"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the user's name parts for display and filenames.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Reviewer pairs a reviewer identity with its current assignment load.
type Reviewer struct {
	ID            string `db:"id" json:"id"`
	Email         string `db:"email" json:"email"`
	FirstName     string `db:"first_name" json:"first_name"`
	LastName      string `db:"last_name" json:"last_name"`
	AssignedCount int    `db:"assigned_count" json:"assigned_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
