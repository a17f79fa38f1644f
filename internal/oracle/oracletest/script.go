// Package oracletest provides a scripted oracle.Client for tests.
package oracletest

import (
	"context"
	"fmt"
	"sync"

	"pharmadoc/internal/oracle"
)

// Reply is one scripted oracle response.
type Reply struct {
	Text string
	Err  error
}

// Script replays a fixed sequence of replies and records the requests it saw.
// Safe for concurrent use. Once the script is exhausted, further calls fail.
type Script struct {
	mu       sync.Mutex
	replies  []Reply
	requests []oracle.Request
	next     int
}

// NewScript builds a scripted client.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Generate implements oracle.Client.
func (s *Script) Generate(_ context.Context, req oracle.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.next >= len(s.replies) {
		return "", fmt.Errorf("oracletest: unexpected call %d (script has %d replies)", s.next+1, len(s.replies))
	}
	r := s.replies[s.next]
	s.next++
	return r.Text, r.Err
}

// Calls returns how many times Generate was invoked.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request seen so far.
func (s *Script) Requests() []oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]oracle.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
