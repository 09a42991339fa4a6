package models

import "time"

// Account represents a row in the "accounts" table.
// Fields map 1-to-1 with columns; no automatic relation loading.
//
// PasswordHash is populated only where the hash is needed (Register's
// return value, credential checks). It is never serialised.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Phone        string    `json:"phone,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastLoginAt  time.Time `json:"lastLoginAt"`
}

// Details drops the hash.
func (a Account) Details() AccountDetails {
	return AccountDetails{
		Profile:     a.Profile(),
		JoinedAt:    a.JoinedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

// Profile returns the public fields of the account.
func (a Account) Profile() Profile {
	return Profile{
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
	}
}

// Profile is the public face of an account: what other users see next to a
// message and what the directory listing returns.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// AccountDetails is the single-account view returned by a lookup.
type AccountDetails struct {
	Profile
	JoinedAt    time.Time `json:"joinedAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// RegisterParams holds the fields required to create a new account.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit.
type RegisterParams struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// NewAccountParams is what the repository persists: the password has
// already been replaced by its digest.
type NewAccountParams struct {
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	JoinedAt     time.Time
}
