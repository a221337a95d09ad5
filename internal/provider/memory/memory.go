// Package memory is an in-process identity provider used for local demos
// and tests. It behaves like the admin API: bans set a far-future
// banned_until and flag the account metadata.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/provider"
)

var seedNamespace = uuid.MustParse("6f1c2a4e-9b0d-4c55-8a3e-2f7d1b9c0e11")

// Seed generates n deterministic accounts. Every third account is banned
// and every second one has never signed in.
func Seed(n int, now time.Time) []provider.Account {
	accounts := make([]provider.Account, 0, n)
	for i := 0; i < n; i++ {
		created := now.Add(-time.Duration(i+1) * 24 * time.Hour)
		a := provider.Account{
			ID:           uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("usr_%d", i+1))).String(),
			Email:        fmt.Sprintf("user%d@example.com", i+1),
			UserMetadata: map[string]any{"full_name": fmt.Sprintf("User Name %d", i+1)},
			CreatedAt:    &created,
		}
		if i%2 == 1 {
			signedIn := created.Add(time.Duration(i) * time.Hour)
			a.LastSignInAt = &signedIn
		}
		if i%3 == 0 {
			until := now.Add(provider.BanHorizon)
			a.BannedUntil = &until
			a.UserMetadata["is_banned"] = true
		}
		accounts = append(accounts, a)
	}
	return accounts
}

// Directory is a provider.Directory over an in-memory account list.
type Directory struct {
	mu        sync.Mutex
	accounts  []provider.Account
	now       func() time.Time
	listErr   error
	banErr    error
	listCalls int
	banCalls  int
}

func New(accounts ...provider.Account) *Directory {
	d := &Directory{now: time.Now}
	for _, a := range accounts {
		d.accounts = append(d.accounts, cloneAccount(a))
	}
	return d
}

// FailList makes every subsequent listing fail with err until cleared with nil.
func (d *Directory) FailList(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listErr = err
}

// FailBan makes every subsequent ban update fail with err until cleared with nil.
func (d *Directory) FailBan(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banErr = err
}

func (d *Directory) ListCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listCalls
}

func (d *Directory) BanCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.banCalls
}

// Put adds or replaces an account.
func (d *Directory) Put(a provider.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.accounts {
		if d.accounts[i].ID == a.ID {
			d.accounts[i] = cloneAccount(a)
			return
		}
	}
	d.accounts = append(d.accounts, cloneAccount(a))
}

func (d *Directory) ListDirectoryUsers(ctx context.Context) ([]directory.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.listCalls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	return provider.ToUsers(d.accounts), nil
}

func (d *Directory) SetBanStatus(ctx context.Context, id string, banned bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.banCalls++
	if d.banErr != nil {
		return d.banErr
	}

	for i := range d.accounts {
		a := &d.accounts[i]
		if a.ID != id {
			continue
		}
		if banned {
			until := d.now().Add(provider.BanHorizon)
			a.BannedUntil = &until
		} else {
			a.BannedUntil = nil
		}
		if a.UserMetadata == nil {
			a.UserMetadata = map[string]any{}
		}
		a.UserMetadata["is_banned"] = banned
		return nil
	}

	return &provider.Error{Op: "update user", StatusCode: 404, Message: "User not found", Err: provider.ErrNotFound}
}

func cloneAccount(a provider.Account) provider.Account {
	if a.UserMetadata != nil {
		metadata := make(map[string]any, len(a.UserMetadata))
		for k, v := range a.UserMetadata {
			metadata[k] = v
		}
		a.UserMetadata = metadata
	}
	return a
}
