package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

const (
	// NonceSize is the GCM nonce length on the wire.
	NonceSize = 12
	keySize   = 32
)

// ErrDecryptionFailed is the only error Open ever returns. Key unwrap
// failure, tag failure, and malformed plaintext are indistinguishable
// to the caller so the transport cannot be used as a decryption oracle.
var ErrDecryptionFailed = errors.New("envelope decryption failed")

// Envelope is the sealed wire form of one request or response. Key is
// the RSA-OAEP wrapped AES key, IV the GCM nonce, Data the ciphertext;
// all three base64. An envelope is single-use: Seal draws a fresh key
// and nonce every call.
type Envelope struct {
	Key  string `json:"key"`
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// Seal serializes v to JSON, encrypts it with a fresh AES-256-GCM key
// and 12-byte nonce, and wraps the raw key against the recipient.
func Seal(v interface{}, recipient *rsa.PublicKey) (e Envelope, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		err = errors.Wrap(err, "marshaling payload")
		return
	}

	secret := make([]byte, keySize)
	if _, err = io.ReadFull(rand.Reader, secret); err != nil {
		err = errors.Wrap(err, "generating secret")
		return
	}
	nonce := make([]byte, NonceSize)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		err = errors.Wrap(err, "generating nonce")
		return
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, secret, nil)
	if err != nil {
		err = errors.Wrap(err, "wrapping secret")
		return
	}

	e.Key = base64.StdEncoding.EncodeToString(wrapped)
	e.IV = base64.StdEncoding.EncodeToString(nonce)
	e.Data = base64.StdEncoding.EncodeToString(sealed)
	return
}

// Open unwraps the AES key with the owner's private key, decrypts the
// payload, and unmarshals it into v. Any corruption in any field fails
// closed with ErrDecryptionFailed.
func Open(e Envelope, own *rsa.PrivateKey, v interface{}) error {
	wrapped, err := base64.StdEncoding.DecodeString(e.Key)
	if err != nil {
		return ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(e.IV)
	if err != nil {
		return ErrDecryptionFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return ErrDecryptionFailed
	}

	secret, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, own, wrapped, nil)
	if err != nil {
		return ErrDecryptionFailed
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return ErrDecryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return ErrDecryptionFailed
	}
	if len(nonce) != aead.NonceSize() {
		return ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ErrDecryptionFailed
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return ErrDecryptionFailed
	}
	return nil
}
