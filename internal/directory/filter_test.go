package directory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUsers() []User {
	return []User{
		{ID: "u1", Email: "alice@example.com", FullName: "Alice Liddell", Status: StatusActive},
		{ID: "u2", Email: "bob@example.com", FullName: "Bob Builder", Status: StatusBanned},
		{ID: "u3", Email: "carol@corp.io", FullName: "Carol ALICEson", Status: StatusPending},
		{ID: "u4", Email: "No Email", FullName: "Anonymous", Status: StatusActive},
	}
}

func ids(users []User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query", "", []string{"u1", "u2", "u3", "u4"}},
		{"email substring", "corp.io", []string{"u3"}},
		{"name substring", "builder", []string{"u2"}},
		{"case insensitive on both sides", "ALICE", []string{"u1", "u3"}},
		{"sentinel email", "no email", []string{"u4"}},
		{"no match", "zed", []string{}},
		{"whitespace is significant", "liddell ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sampleUsers(), tt.query)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_EmptyQueryPreservesOrder(t *testing.T) {
	users := sampleUsers()
	got := Filter(users, "")
	require.Equal(t, users, got)
}

func TestFilter_Stateless(t *testing.T) {
	users := sampleUsers()
	queries := []string{"", "alice", "bob", "x", "EXAMPLE"}

	for _, q1 := range queries {
		for _, q2 := range queries {
			_ = Filter(users, q1)
			assert.Equal(t, Filter(users, q2), Filter(users, q2), "q1=%q q2=%q", q1, q2)
		}
	}
	assert.Equal(t, sampleUsers(), users, "input must not be modified")
}

func TestFilter_DoesNotAliasInput(t *testing.T) {
	users := sampleUsers()
	got := Filter(users, "")
	got[0].Status = StatusBanned
	assert.Equal(t, StatusActive, users[0].Status)
}

func TestFilter_FiftyRecords(t *testing.T) {
	var users []User
	var want []string
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("User Name %d", i)
		if i%5 == 0 {
			name = fmt.Sprintf("Alice %d", i)
			want = append(want, fmt.Sprintf("u%d", i))
		}
		users = append(users, User{
			ID:       fmt.Sprintf("u%d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			FullName: name,
			Status:   StatusActive,
		})
	}

	got := Filter(users, "alice")
	require.Len(t, got, 10)
	assert.Equal(t, want, ids(got))
	assert.Len(t, Filter(users, ""), 50)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"Active", "Banned", "Pending"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}

	for _, s := range []string{"", "active", "Deleted"} {
		_, err := ParseStatus(s)
		assert.ErrorIs(t, err, ErrInvalidStatus, "status %q", s)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusBanned, StatusFor(true))
	assert.Equal(t, StatusActive, StatusFor(false))
}
