package client

import (
	"sync"

	"lumigente_backend/users/access"
)

// UserSummary is an entry of the users list used by pickers.
type UserSummary struct {
	ID           int64  `json:"userId"`
	NomeCompleto string `json:"nomeCompleto"`
	Departamento string `json:"departamento"`
}

// State is what a session carries between commands: who is logged in and
// the users it can see.
type State struct {
	mu    sync.RWMutex
	user  *access.User
	users []UserSummary
}

func NewState() *State {
	return &State{}
}

func (s *State) User() *access.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *State) SetUser(u *access.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *State) Users() []UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]UserSummary(nil), s.users...)
}

func (s *State) SetUsers(list []UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append([]UserSummary(nil), list...)
}

// Reset forgets everything, as on logout.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.users = nil
}
