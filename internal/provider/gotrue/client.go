// Package gotrue talks to a Supabase/GoTrue admin API with a service-role
// key.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/provider"
)

const (
	usersPath = "/auth/v1/admin/users"
	userPath  = "/auth/v1/admin/users/{id}"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	PageSize       int
	Timeout        time.Duration
	MaxRetries     uint64
	RetryInterval  time.Duration
}

type Client struct {
	http          *resty.Client
	pageSize      int
	maxRetries    uint64
	retryInterval time.Duration
	log           zerolog.Logger
}

type adminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	BannedUntil  *time.Time     `json:"banned_until"`
	LastSignInAt *time.Time     `json:"last_sign_in_at"`
	CreatedAt    *time.Time     `json:"created_at"`
}

type listUsersResponse struct {
	Users []adminUser `json:"users"`
}

type updateUserRequest struct {
	BanDuration  string         `json:"ban_duration"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type errorResponse struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("gotrue: url is required")
	}
	if cfg.ServiceRoleKey == "" {
		return nil, errors.New("gotrue: service role key is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("apikey", cfg.ServiceRoleKey).
		SetAuthToken(cfg.ServiceRoleKey).
		SetTimeout(cfg.Timeout)

	return &Client{
		http:          c,
		pageSize:      cfg.PageSize,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		log:           log.With().Str("provider", "gotrue").Logger(),
	}, nil
}

// ListDirectoryUsers fetches the directory in a single request. Temporary
// failures are retried; listing is idempotent.
func (c *Client) ListDirectoryUsers(ctx context.Context) ([]directory.User, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	attempt := 0
	users, err := backoff.RetryWithData(func() ([]adminUser, error) {
		attempt++
		users, err := c.listUsers(ctx)
		if err == nil {
			return users, nil
		}
		if !provider.IsTemporary(err) {
			return nil, backoff.Permanent(err)
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("list users failed, retrying")
		return nil, err
	}, policy)
	if err != nil {
		return nil, err
	}

	accounts := make([]provider.Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, provider.Account{
			ID:           u.ID,
			Email:        u.Email,
			UserMetadata: u.UserMetadata,
			BannedUntil:  u.BannedUntil,
			LastSignInAt: u.LastSignInAt,
			CreatedAt:    u.CreatedAt,
		})
	}
	return provider.ToUsers(accounts), nil
}

func (c *Client) listUsers(ctx context.Context) ([]adminUser, error) {
	var out listUsersResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", "1").
		SetQueryParam("per_page", strconv.Itoa(c.pageSize)).
		SetResult(&out).
		SetError(&apiErr).
		Get(usersPath)
	if err != nil {
		return nil, &provider.Error{Op: "list users", Err: err}
	}
	if resp.IsError() {
		return nil, statusError("list users", resp.StatusCode(), apiErr)
	}
	return out.Users, nil
}

// SetBanStatus bans or unbans one account. It is never retried: a timed
// out update may still have been applied.
func (c *Client) SetBanStatus(ctx context.Context, id string, banned bool) error {
	if id == "" {
		return &provider.Error{Op: "update user", Message: "user id is required"}
	}

	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(updateUserRequest{
			BanDuration:  provider.BanDuration(banned),
			UserMetadata: map[string]any{"is_banned": banned},
		}).
		SetError(&apiErr).
		Put(userPath)
	if err != nil {
		return &provider.Error{Op: "update user", Err: err}
	}
	if resp.IsError() {
		return statusError("update user", resp.StatusCode(), apiErr)
	}

	c.log.Info().Str("user_id", id).Bool("banned", banned).Msg("ban status updated")
	return nil
}

func statusError(op string, code int, body errorResponse) error {
	e := &provider.Error{Op: op, StatusCode: code, Message: body.text()}
	if code == http.StatusNotFound {
		e.Err = provider.ErrNotFound
		if e.Message == "" {
			e.Message = "User not found"
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s: HTTP %d", op, code)
	}
	return e
}
