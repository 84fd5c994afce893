package authsdk

import (
	"sync"
)

// Session is the client-side session context: the current access token and
// the refresh bookkeeping shared by every request made on its behalf.
// Independent sessions never share state.
//
// Requests that hit a 401 while a refresh is in flight queue behind it and
// are released once each, in the order they queued. Released requests then
// retry concurrently, so their responses may complete in any order.
type Session struct {
	mu          sync.Mutex
	accessToken string
	refreshing  bool
	waiters     []chan refreshResult // FIFO, settled exactly once
}

type refreshResult struct {
	token string
	err   error
}

// NewSession returns a session holding accessToken, which may be empty.
func NewSession(accessToken string) *Session {
	return &Session{accessToken: accessToken}
}

// AccessToken returns the current access token, "" when logged out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// SetAccessToken replaces the access token, typically after login.
func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

// Clear drops the access token. An in-flight refresh still settles its
// waiters.
func (s *Session) Clear() {
	s.SetAccessToken("")
}

// Refreshing reports whether a refresh is in flight.
func (s *Session) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// begin decides the caller's role after a 401 received with token stale. It
// returns either a newer token to retry with, a channel to wait on, or
// lead=true when the caller must perform the refresh itself.
func (s *Session) begin(stale string) (token string, wait <-chan refreshResult, lead bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshing {
		ch := make(chan refreshResult, 1)
		s.waiters = append(s.waiters, ch)
		return "", ch, false
	}
	if s.accessToken != "" && s.accessToken != stale {
		return s.accessToken, nil, false
	}
	s.refreshing = true
	return "", nil, true
}

// settle records the refresh outcome and releases every waiter in queue
// order. A failed refresh logs the session out.
func (s *Session) settle(token string, err error) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.refreshing = false
	if err != nil {
		s.accessToken = ""
	} else {
		s.accessToken = token
	}
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
}

func (s *Session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
