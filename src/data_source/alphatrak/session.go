package alphatrak

import "sync"

// Session is the client's only mutable state. Login sets token and user id
// together; SetToken swaps the token alone. Every request reads the token
// once when it is built, so a swap never affects a request in flight.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID *int64
	petID  *int64
}

// -----------------------------------------------------------------------------

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// -----------------------------------------------------------------------------

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// -----------------------------------------------------------------------------

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// setLogin stores what a login returned. Empty values keep the current ones.
func (s *Session) setLogin(token string, userID *int64) {
	s.mu.Lock()
	if token != "" {
		s.token = token
	}
	if userID != nil {
		s.userID = userID
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (s *Session) UserID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == nil {
		return 0, false
	}
	return *s.userID, true
}

// -----------------------------------------------------------------------------

func (s *Session) PetID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.petID == nil {
		return 0, false
	}
	return *s.petID, true
}

// -----------------------------------------------------------------------------

func (s *Session) SetPetID(id int64) {
	s.mu.Lock()
	s.petID = &id
	s.mu.Unlock()
}
