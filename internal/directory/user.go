// Package directory holds the local snapshot of the remote user directory
// and the filtered view derived from it.
package directory

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusActive  Status = "Active"
	StatusBanned  Status = "Banned"
	StatusPending Status = "Pending"
)

var ErrInvalidStatus = errors.New("invalid user status")

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusBanned, StatusPending:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// StatusFor maps a ban flag to the status a provider reports for it.
// Pending is never produced here.
func StatusFor(banned bool) Status {
	if banned {
		return StatusBanned
	}
	return StatusActive
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	return []byte(s), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type LoadStatus string

const (
	LoadIdle      LoadStatus = "idle"
	LoadLoading   LoadStatus = "loading"
	LoadSucceeded LoadStatus = "succeeded"
	LoadFailed    LoadStatus = "failed"
)

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName"`
	Status    Status     `json:"status"`
	LastLogin *time.Time `json:"lastLogin"`
}

func (u User) clone() User {
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func cloneUsers(users []User) []User {
	if users == nil {
		return nil
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.clone()
	}
	return out
}
