// Package provider defines the identity-provider collaborators consumed by
// the directory console and the mapping from raw provider accounts to
// directory records.
package provider

import (
	"context"
	"time"

	"github.com/terminally-online/warden/internal/directory"
)

const (
	NoEmail   = "No Email"
	Anonymous = "Anonymous"

	// BanHorizon is how far into the future a ban is set. Providers have no
	// permanent ban, so a ban is a century-long suspension.
	BanHorizon = 876000 * time.Hour
)

// Directory lists accounts and updates ban status on the system of record.
type Directory interface {
	ListDirectoryUsers(ctx context.Context) ([]directory.User, error)
	SetBanStatus(ctx context.Context, id string, banned bool) error
}

type Principal struct {
	Email string
}

type PrincipalSource interface {
	ActingPrincipal() *Principal
}

type staticPrincipal struct {
	principal *Principal
}

// StaticPrincipal returns a source that always reports email as the acting
// principal. An empty email means no principal.
func StaticPrincipal(email string) PrincipalSource {
	if email == "" {
		return staticPrincipal{}
	}
	return staticPrincipal{principal: &Principal{Email: email}}
}

func (s staticPrincipal) ActingPrincipal() *Principal {
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Account is the raw shape shared by the admin API and the auth.users table.
type Account struct {
	ID           string
	Email        string
	UserMetadata map[string]any
	BannedUntil  *time.Time
	LastSignInAt *time.Time
	CreatedAt    *time.Time
}

func ToUser(a Account) directory.User {
	email := a.Email
	if email == "" {
		email = NoEmail
	}

	lastLogin := a.LastSignInAt
	if lastLogin == nil {
		lastLogin = a.CreatedAt
	}
	if lastLogin != nil {
		t := *lastLogin
		lastLogin = &t
	}

	return directory.User{
		ID:        a.ID,
		Email:     email,
		FullName:  fullName(a.UserMetadata),
		Status:    directory.StatusFor(a.BannedUntil != nil),
		LastLogin: lastLogin,
	}
}

func ToUsers(accounts []Account) []directory.User {
	users := make([]directory.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, ToUser(a))
	}
	return users
}

func fullName(metadata map[string]any) string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return Anonymous
}

// BanDuration is the admin API ban_duration value for a ban flag.
func BanDuration(banned bool) string {
	if banned {
		return "876000h"
	}
	return "none"
}
