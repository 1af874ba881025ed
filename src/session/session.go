package session

import (
	"crypto/rsa"
	"sync"

	"github.com/sparrow996/chat-front/src/envelope"
)

// Sink receives sealed push envelopes for one identity.
type Sink interface {
	Send(e envelope.Envelope)
	Close()
}

// Session binds an authenticated identity to the public key it
// registered at login and, optionally, a live push sink. Sessions are
// created by login and live until process teardown; there is no logout
// or expiry path.
type Session struct {
	IdentityID string
	PublicKey  *rsa.PublicKey
	sink       Sink
}

// Registry is the server-side session table. Requests from different
// identities run in parallel, so every access goes through the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register records a session for the identity, overwriting any prior
// one. Multi-device concurrency is not modeled.
func (r *Registry) Register(identityID string, pub *rsa.PublicKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.sessions[identityID]; ok && prior.sink != nil {
		prior.sink.Close()
	}
	s := &Session{IdentityID: identityID, PublicKey: pub}
	r.sessions[identityID] = s
	return s
}

// Lookup is the entire authentication check: a request claiming an
// identity is authenticated iff that identity has a registered session.
func (r *Registry) Lookup(identityID string) (s *Session, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok = r.sessions[identityID]
	return
}

// AttachPush sets the identity's push sink. Returns false if no session
// exists.
func (r *Registry) AttachPush(identityID string, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identityID]
	if !ok {
		return false
	}
	if s.sink != nil {
		s.sink.Close()
	}
	s.sink = sink
	return true
}

// DetachPush clears the sink without destroying the session. Detaching
// twice, or with no session at all, is a no-op.
func (r *Registry) DetachPush(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identityID]
	if !ok || s.sink == nil {
		return
	}
	s.sink.Close()
	s.sink = nil
}

// PushTarget returns the sink and key needed to deliver one event, or
// ok=false if the identity has no session or no attached sink.
func (r *Registry) PushTarget(identityID string) (sink Sink, pub *rsa.PublicKey, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, found := r.sessions[identityID]
	if !found || s.sink == nil {
		return nil, nil, false
	}
	return s.sink, s.PublicKey, true
}
