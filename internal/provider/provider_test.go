package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminally-online/warden/internal/directory"
)

func TestToUser_Fallbacks(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	signedIn := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	banned := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		account Account
		want    directory.User
	}{
		{
			name: "complete account",
			account: Account{
				ID:           "u1",
				Email:        "a@x.com",
				UserMetadata: map[string]any{"full_name": "Alice A", "name": "alice"},
				LastSignInAt: &signedIn,
				CreatedAt:    &created,
			},
			want: directory.User{ID: "u1", Email: "a@x.com", FullName: "Alice A", Status: directory.StatusActive, LastLogin: &signedIn},
		},
		{
			name: "name fallback and creation time",
			account: Account{
				ID:           "u2",
				Email:        "b@x.com",
				UserMetadata: map[string]any{"full_name": "", "name": "Bob"},
				CreatedAt:    &created,
			},
			want: directory.User{ID: "u2", Email: "b@x.com", FullName: "Bob", Status: directory.StatusActive, LastLogin: &created},
		},
		{
			name: "whitespace name is kept",
			account: Account{
				ID:           "u5",
				Email:        "e@x.com",
				UserMetadata: map[string]any{"full_name": " ", "name": "Eve"},
				CreatedAt:    &created,
			},
			want: directory.User{ID: "u5", Email: "e@x.com", FullName: " ", Status: directory.StatusActive, LastLogin: &created},
		},
		{
			name:    "everything missing",
			account: Account{ID: "u3"},
			want:    directory.User{ID: "u3", Email: NoEmail, FullName: Anonymous, Status: directory.StatusActive},
		},
		{
			name: "non string metadata",
			account: Account{
				ID:           "u4",
				Email:        "d@x.com",
				UserMetadata: map[string]any{"full_name": 42},
				BannedUntil:  &banned,
			},
			want: directory.User{ID: "u4", Email: "d@x.com", FullName: Anonymous, Status: directory.StatusBanned},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToUser(tt.account))
		})
	}
}

func TestToUser_NeverProducesPending(t *testing.T) {
	banned := time.Now()
	for _, a := range []Account{{ID: "a"}, {ID: "b", BannedUntil: &banned}} {
		assert.NotEqual(t, directory.StatusPending, ToUser(a).Status)
	}
}

func TestToUsers_PreservesOrder(t *testing.T) {
	users := ToUsers([]Account{{ID: "3"}, {ID: "1"}, {ID: "2"}})
	require.Len(t, users, 3)
	assert.Equal(t, "3", users[0].ID)
	assert.Equal(t, "2", users[2].ID)
}

func TestBanDuration(t *testing.T) {
	assert.Equal(t, "876000h", BanDuration(true))
	assert.Equal(t, "none", BanDuration(false))
	assert.Equal(t, BanHorizon, 876000*time.Hour)
}

func TestStaticPrincipal(t *testing.T) {
	assert.Nil(t, StaticPrincipal("").ActingPrincipal())

	p := StaticPrincipal("admin@example.com").ActingPrincipal()
	require.NotNil(t, p)
	assert.Equal(t, "admin@example.com", p.Email)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "User not allowed", (&Error{Op: "ban", StatusCode: 403, Message: "User not allowed"}).Error())
	assert.Equal(t, "dial tcp: refused", (&Error{Op: "list", Err: errors.New("dial tcp: refused")}).Error())
	assert.Equal(t, "list: HTTP 502", (&Error{Op: "list", StatusCode: 502}).Error())
	assert.Equal(t, "", (&Error{}).Error())
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{&Error{Err: errors.New("connection reset")}, true},
		{&Error{Err: ErrNotFound}, false},
		{&Error{StatusCode: http.StatusRequestTimeout}, true},
		{&Error{StatusCode: http.StatusTooManyRequests}, true},
		{&Error{StatusCode: http.StatusBadGateway}, true},
		{&Error{StatusCode: http.StatusNotFound}, false},
		{&Error{StatusCode: http.StatusUnauthorized}, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%v", tt.err.StatusCode, tt.err.Err), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Temporary())
			assert.Equal(t, tt.want, IsTemporary(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}
