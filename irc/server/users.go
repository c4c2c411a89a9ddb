package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/presbrey/ircd/irc"
)

// ErrDuplicateRegistration is returned when a connection is registered twice
var ErrDuplicateRegistration = errors.New("connection already registered")

// UserRegistry indexes users by connection ID and by folded nickname.
// It guarantees at most one user per folded nickname.
type UserRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byNick map[string]*User
}

// NewUserRegistry creates an empty registry
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		byID:   make(map[string]*User),
		byNick: make(map[string]*User),
	}
}

// Register adds a new, not yet named user
func (r *UserRegistry) Register(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[u.ID]; exists {
		return ErrDuplicateRegistration
	}
	r.byID[u.ID] = u
	return nil
}

// SetNickname claims proposed for u, releasing u's previous nickname.
// On failure the registry and the user are left unchanged.
func (r *UserRegistry) SetNickname(u *User, proposed string) error {
	if !irc.ValidNickname(proposed) {
		return irc.NewError(irc.InvalidNickname, proposed)
	}

	key := irc.Fold(proposed)

	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, exists := r.byNick[key]; exists && holder != u {
		return irc.NewError(irc.NicknameInUse, proposed)
	}

	if u.Nick != "" {
		if old := irc.Fold(u.Nick); r.byNick[old] == u {
			delete(r.byNick, old)
		}
	}
	r.byNick[key] = u
	u.Nick = proposed
	return nil
}

// Lookup finds a user by nickname, case-insensitively
func (r *UserRegistry) Lookup(nick string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byNick[irc.Fold(nick)]
}

// Get finds a user by connection ID
func (r *UserRegistry) Get(id string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id]
}

// Remove detaches the user from both indexes
func (r *UserRegistry) Remove(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, u.ID)
	if u.Nick != "" {
		if key := irc.Fold(u.Nick); r.byNick[key] == u {
			delete(r.byNick, key)
		}
	}
}

// Len returns the number of connected users
func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// Users returns a snapshot of all users ordered by connection time
func (r *UserRegistry) Users() []*User {
	r.mu.RLock()
	users := make([]*User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].Connected.Before(users[j].Connected)
	})
	return users
}
