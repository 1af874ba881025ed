package store

import (
	"strconv"
	"time"
)

// ChatID returns the order-independent key of a two-party conversation
// log: the pair of ids, sorted.
func ChatID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// nextID hands out strictly increasing millisecond ids so messages
// created in the same instant stay distinguishable and ordered.
func (s *Store) nextID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := nowMillis()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
