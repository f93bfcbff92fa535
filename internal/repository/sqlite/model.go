package sqlite

import (
	"time"

	"protask/internal/domain"
)

// Account is a row of the accounts table
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// ToDomain drops the credential material.
func (a *Account) ToDomain() *domain.Account {
	return &domain.Account{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// Document is a row of the documents table. Fields holds the JSON encoding.
type Document struct {
	Collection string
	ID         string
	Fields     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PasswordReset is a row of the password_resets table
type PasswordReset struct {
	TokenHash string
	AccountID string
	ExpiresAt time.Time
	UsedAt    *time.Time
}
