package directory

import (
	"sync"

	"github.com/rs/zerolog"
)

// State is a consistent copy of the store taken under one lock.
type State struct {
	CacheStatus LoadStatus `json:"status"`
	Err         string     `json:"error,omitempty"`
	Query       string     `json:"query"`
	Users       []User     `json:"-"`
	Filtered    []User     `json:"users"`
	Version     uint64     `json:"version"`
}

// Store owns the cached directory records and the filtered view over them.
// Every write recomputes the view before releasing the lock, so no reader
// can observe the cache and the view out of step.
type Store struct {
	mu       sync.RWMutex
	status   LoadStatus
	err      string
	query    string
	users    []User
	index    map[string]int
	filtered []User
	version  uint64
	log      zerolog.Logger
}

func NewStore(log zerolog.Logger) *Store {
	return &Store{
		status:   LoadIdle,
		index:    make(map[string]int),
		filtered: []User{},
		log:      log.With().Str("component", "directory_store").Logger(),
	}
}

// BeginLoad moves the store to Loading. Idle and Failed stores always
// transition; a Succeeded store only does so for an explicit reload. A store
// that is already Loading is left alone and false is returned.
func (s *Store) BeginLoad(explicit bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case LoadLoading:
		return false
	case LoadSucceeded:
		if !explicit {
			return false
		}
	}

	s.status = LoadLoading
	s.err = ""
	s.version++
	return true
}

// CompleteLoad replaces the whole record set. Records with an id already
// seen earlier in users are dropped.
func (s *Store) CompleteLoad(users []User) {
	records := make([]User, 0, len(users))
	index := make(map[string]int, len(users))
	for _, u := range users {
		if _, dup := index[u.ID]; dup {
			s.log.Warn().Str("user_id", u.ID).Msg("dropping duplicate directory record")
			continue
		}
		index[u.ID] = len(records)
		records = append(records, u.clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = records
	s.index = index
	s.filtered = Filter(s.users, s.query)
	s.status = LoadSucceeded
	s.err = ""
	s.version++
}

// FailLoad records the failure and keeps the last good records visible.
func (s *Store) FailLoad(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = LoadFailed
	s.err = reason
	s.version++
}

func (s *Store) SetQuery(query string) {
	normalized := NormalizeQuery(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = normalized
	s.filtered = Filter(s.users, s.query)
	s.version++
}

// ApplyStatusMutation updates one record in place and recomputes the view.
// An unknown id is ignored: a reload may have removed the record.
func (s *Store) ApplyStatusMutation(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		s.log.Debug().Str("user_id", id).Msg("ignoring status mutation for unknown record")
		return false
	}

	s.users[i].Status = status
	s.filtered = Filter(s.users, s.query)
	s.version++
	return true
}

func (s *Store) Status() LoadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Get(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return User{}, false
	}
	return s.users[i].clone(), true
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := cloneUsers(s.users)
	if users == nil {
		users = []User{}
	}
	return State{
		CacheStatus: s.status,
		Err:         s.err,
		Query:       s.query,
		Users:       users,
		Filtered:    cloneUsers(s.filtered),
		Version:     s.version,
	}
}

// Reset drops every record and returns the store to Idle. Called on
// session teardown.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = LoadIdle
	s.err = ""
	s.query = ""
	s.users = nil
	s.index = make(map[string]int)
	s.filtered = []User{}
	s.version++
}
