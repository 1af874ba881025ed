package keypair

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureIsIdempotent(t *testing.T) {
	m := New()
	first, err := m.Ensure()
	assert.Nil(t, err)
	second, err := m.Ensure()
	assert.Nil(t, err)
	assert.Equal(t, first, second)
}

func TestExportImportRoundTrip(t *testing.T) {
	m := New()
	record, err := m.Ensure()
	assert.Nil(t, err)

	pub, err := ParsePublicRecord(record)
	assert.Nil(t, err)
	priv, err := m.Private()
	assert.Nil(t, err)
	assert.Equal(t, priv.PublicKey, *pub)
	assert.Equal(t, Bits, pub.N.BitLen())
}

func TestImportPeerCaches(t *testing.T) {
	peer := New()
	record, err := peer.Ensure()
	assert.Nil(t, err)

	m := New()
	first, err := m.ImportPeer(record)
	assert.Nil(t, err)
	second, err := m.ImportPeer(record)
	assert.Nil(t, err)
	assert.True(t, first == second)
}

func TestImportPeerRejectsGarbage(t *testing.T) {
	m := New()
	_, err := m.ImportPeer("not base64!!")
	assert.NotNil(t, err)

	_, err = m.ImportPeer(base64.StdEncoding.EncodeToString([]byte("not a key")))
	assert.NotNil(t, err)
}
