package directory

import "strings"

// NormalizeQuery case-folds a search query. Whitespace is significant.
func NormalizeQuery(query string) string {
	return strings.ToLower(query)
}

// Matches reports whether u matches an already normalized query.
func Matches(u User, normalized string) bool {
	if normalized == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Email), normalized) ||
		strings.Contains(strings.ToLower(u.FullName), normalized)
}

// Filter returns the users whose email or full name contains query,
// case-insensitively, in input order. The result never aliases users.
func Filter(users []User, query string) []User {
	normalized := NormalizeQuery(query)

	out := make([]User, 0, len(users))
	for _, u := range users {
		if Matches(u, normalized) {
			out = append(out, u.clone())
		}
	}
	return out
}
