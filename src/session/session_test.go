package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sparrow996/chat-front/src/envelope"
	"github.com/sparrow996/chat-front/src/keypair"
)

type fakeSink struct {
	sent   []envelope.Envelope
	closed int
}

func (f *fakeSink) Send(e envelope.Envelope) { f.sent = append(f.sent, e) }
func (f *fakeSink) Close()                   { f.closed++ }

func testKey(t *testing.T) *keypair.Manager {
	m := keypair.New()
	_, err := m.Ensure()
	assert.Nil(t, err)
	return m
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("10001")
	assert.False(t, ok)

	priv, err := testKey(t).Private()
	assert.Nil(t, err)
	r.Register("10001", &priv.PublicKey)

	s, ok := r.Lookup("10001")
	assert.True(t, ok)
	assert.Equal(t, "10001", s.IdentityID)
	assert.Equal(t, &priv.PublicKey, s.PublicKey)
}

func TestRegisterOverwritesPriorSession(t *testing.T) {
	r := NewRegistry()
	old, err := testKey(t).Private()
	assert.Nil(t, err)
	r.Register("10001", &old.PublicKey)

	sink := &fakeSink{}
	assert.True(t, r.AttachPush("10001", sink))

	replacement, err := testKey(t).Private()
	assert.Nil(t, err)
	r.Register("10001", &replacement.PublicKey)

	s, ok := r.Lookup("10001")
	assert.True(t, ok)
	assert.Equal(t, &replacement.PublicKey, s.PublicKey)
	// the stale sink was closed and not carried over
	assert.Equal(t, 1, sink.closed)
	_, _, ok = r.PushTarget("10001")
	assert.False(t, ok)
}

func TestAttachDetachPush(t *testing.T) {
	r := NewRegistry()
	priv, err := testKey(t).Private()
	assert.Nil(t, err)

	sink := &fakeSink{}
	assert.False(t, r.AttachPush("10001", sink)) // no session yet

	r.Register("10001", &priv.PublicKey)
	assert.True(t, r.AttachPush("10001", sink))

	got, pub, ok := r.PushTarget("10001")
	assert.True(t, ok)
	assert.Equal(t, &priv.PublicKey, pub)
	got.Send(envelope.Envelope{})
	assert.Equal(t, 1, len(sink.sent))

	// detaching is idempotent and never destroys the session
	r.DetachPush("10001")
	r.DetachPush("10001")
	r.DetachPush("unknown")
	assert.Equal(t, 1, sink.closed)
	_, _, ok = r.PushTarget("10001")
	assert.False(t, ok)
	_, ok = r.Lookup("10001")
	assert.True(t, ok)
}
