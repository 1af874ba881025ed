package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/utils"
)

var (
	ErrEmpty    = errors.New("blob is empty")
	ErrNotFound = errors.New("no blob with that locator")
)

// Store holds uploaded binaries in memory and hands back opaque
// locators. It stands in for whatever object storage a real deployment
// would use; nothing here persists past process teardown.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Store saves the bytes and returns their locator. Identical content
// maps to the same locator.
func (s *Store) Store(data []byte) (locator string, err error) {
	if len(data) == 0 {
		err = ErrEmpty
		return
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	locator = "blob:" + utils.StringToReadableHash(digest) + "-" + digest[:8]

	s.mu.Lock()
	s.blobs[locator] = data
	s.mu.Unlock()
	return
}

func (s *Store) Retrieve(locator string) (data []byte, err error) {
	s.mu.RLock()
	data, ok := s.blobs[locator]
	s.mu.RUnlock()
	if !ok {
		err = ErrNotFound
	}
	return
}
