package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"strings"

	"github.com/schollz/mnemonicode"
)

// HashCredential returns the hex SHA-256 digest of a plaintext credential.
// Callers hash before transport so the server only ever compares digests.
func HashCredential(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// StringToReadableHash turns any string into a short human-readable
// word sequence, used for blob locators.
func StringToReadableHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	bs := make([]byte, 4)
	binary.LittleEndian.PutUint32(bs, h.Sum32())
	result := mnemonicode.EncodeWordList([]string{}, bs)
	return strings.Join(result, "-")
}
