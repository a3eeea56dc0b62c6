// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// PasswordHash never leaves the service layer: handlers only ever see the
// PublicUser projection returned by Public.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"` // unique, case-sensitive as stored
	PasswordHash string    `json:"-"         db:"password"`
	IsActive     bool      `json:"isActive"  db:"is_active"` // false until the email is confirmed
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the sanitized user: id, name and email only.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the sanitized projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
