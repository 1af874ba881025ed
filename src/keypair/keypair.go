package keypair

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"sync"

	"github.com/pkg/errors"
)

// Bits is the RSA modulus size used for every keypair in the system.
// The wrap algorithm (RSA-OAEP/SHA-256) and symmetric cipher
// (AES-256-GCM) are fixed design parameters, never negotiated per call.
const Bits = 2048

// Manager owns one long-lived RSA keypair for a single identity. The
// server holds one Manager shared by every session (a documented
// scalability simplification); each logged-in caller holds its own.
// Imported peer keys are cached for the Manager's lifetime and are only
// ever used for wrapping, never unwrapping.
type Manager struct {
	mu    sync.Mutex
	key   *rsa.PrivateKey
	peers map[string]*rsa.PublicKey
}

func New() *Manager {
	return &Manager{peers: make(map[string]*rsa.PublicKey)}
}

// Ensure lazily generates the keypair. Repeated calls return the same
// exported public record without regenerating.
func (m *Manager) Ensure() (record string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		m.key, err = rsa.GenerateKey(rand.Reader, Bits)
		if err != nil {
			err = errors.Wrap(err, "generating keypair")
			return
		}
	}
	return exportPublic(&m.key.PublicKey)
}

// Private returns the private half, generating the pair first if
// needed. The private key never leaves the process.
func (m *Manager) Private() (key *rsa.PrivateKey, err error) {
	_, err = m.Ensure()
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key = m.key
	return
}

// ImportPeer validates an exported public record and caches the parsed
// key for wrapping.
func (m *Manager) ImportPeer(record string) (pub *rsa.PublicKey, err error) {
	m.mu.Lock()
	if cached, ok := m.peers[record]; ok {
		m.mu.Unlock()
		pub = cached
		return
	}
	m.mu.Unlock()

	pub, err = ParsePublicRecord(record)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.peers[record] = pub
	m.mu.Unlock()
	return
}

// ParsePublicRecord decodes a base64 PKIX public record into an RSA
// public key.
func ParsePublicRecord(record string) (pub *rsa.PublicKey, err error) {
	der, err := base64.StdEncoding.DecodeString(record)
	if err != nil {
		err = errors.Wrap(err, "public record is not base64")
		return
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		err = errors.Wrap(err, "public record is not a valid key")
		return
	}
	var ok bool
	pub, ok = parsed.(*rsa.PublicKey)
	if !ok {
		err = errors.New("public record is not an RSA key")
	}
	return
}

func exportPublic(pub *rsa.PublicKey) (record string, err error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		err = errors.Wrap(err, "exporting public key")
		return
	}
	record = base64.StdEncoding.EncodeToString(der)
	return
}
