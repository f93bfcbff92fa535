package domain

import "time"

// Identity is the authenticated user as seen by the rest of the system.
// It only exists while a session is authenticated.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
}

// WithDisplayName returns a copy of the identity carrying name.
func (i Identity) WithDisplayName(name string) Identity {
	i.DisplayName = name
	return i
}

// FallbackName is used when neither a profile name nor an email is known.
const FallbackName = "User"

// Profile is the persisted per-identity profile record.
type Profile struct {
	DisplayName string
	Email       string
	CreatedAt   *time.Time
}

// ResolveName picks the name to display: the stored display name, then the
// email, then FallbackName.
func (p Profile) ResolveName() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Email != "":
		return p.Email
	default:
		return FallbackName
	}
}

// Account is what the identity provider knows about a signed-in user.
type Account struct {
	ID          string
	Email       string
	DisplayName string
}

// Identity converts the account into a session identity using name as the
// display name.
func (a Account) Identity(name string) Identity {
	return Identity{ID: a.ID, DisplayName: name, Email: a.Email}
}
