package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/logging"
)

var (
	log = logging.Log

	// ErrNotFound means the addressed user or contact does not exist.
	ErrNotFound = errors.New("no such user")
)

// Store holds every identity, friend edge, remark, and message log in
// an in-memory sqlite database, plus the fixed sticker catalog. All
// state is volatile; durability is explicitly out of scope. The single
// connection serializes concurrent access.
type Store struct {
	db       *sql.DB
	stickers []string

	idMu   sync.Mutex
	lastID int64
}

// Open creates a fresh empty store.
func Open() (s *Store, err error) {
	s = new(Store)
	s.db, err = sql.Open("sqlite3", ":memory:")
	if err != nil {
		err = errors.Wrap(err, "opening store")
		return
	}
	// one connection: ":memory:" gives every pool connection its own database
	s.db.SetMaxOpenConns(1)
	err = s.makeTables()
	return
}

// Close releases the database; all state is gone afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) makeTables() (err error) {
	for _, stmt := range []string{
		`create table users (id text not null primary key, username text, name text, avatar text, password text, status integer, sidebar_wallpaper text, chat_wallpaper text);`,
		`create index idx_username on users(username);`,
		`create table friends (user_id text not null, friend_id text not null, primary key(user_id, friend_id));`,
		`create table remarks (user_id text not null, friend_id text not null, remark text, primary key(user_id, friend_id));`,
		`create table messages (id text not null primary key, chat_id text not null, sender_id text, kind text, content text, created integer, is_read integer, is_revoked integer);`,
		`create index idx_chat on messages(chat_id, created);`,
	} {
		if _, err = s.db.Exec(stmt); err != nil {
			err = errors.Wrap(err, "makeTables")
			return
		}
	}
	return
}

// SeedDemo loads the fixed demonstration data: five active identities
// sharing the same credential digest, alice and bob already friends
// (with alice's "Bobby" remark), fifty messages in their conversation,
// and sixty stickers.
func (s *Store) SeedDemo() (err error) {
	const digest = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3" // sha256("123")
	for i, name := range []string{"Alice", "Bob", "Charlie", "David", "Eva"} {
		u := User{
			ID:       fmt.Sprintf("1000%d", i+1),
			Username: strings.ToLower(name),
			Name:     name,
			Avatar:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", strings.ToLower(name)),
			Password: digest,
			Status:   StatusActive,
		}
		if err = s.AddUser(u); err != nil {
			return
		}
	}

	if err = s.AddFriend("10001", "10002"); err != nil {
		return
	}
	if err = s.SetRemark("10001", "10002", "Bobby"); err != nil {
		return
	}

	chat := ChatID("10001", "10002")
	now := nowMillis()
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "seeding messages")
	}
	stmt, err := tx.Prepare("insert into messages(id, chat_id, sender_id, kind, content, created, is_read, is_revoked) values(?,?,?,?,?,?,?,?)")
	if err != nil {
		return errors.Wrap(err, "seeding messages")
	}
	defer stmt.Close()
	for i := 0; i < 50; i++ {
		sender := "10001"
		if i%2 == 1 {
			sender = "10002"
		}
		created := now - int64(50-i)*3600000
		_, err = stmt.Exec(fmt.Sprintf("%d", now-int64(50-i)*10000), chat, sender,
			KindText, fmt.Sprintf("Seeded message #%d.", i), created, 1, 0)
		if err != nil {
			return errors.Wrap(err, "seeding messages")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "seeding messages")
	}

	s.stickers = make([]string, 60)
	for i := range s.stickers {
		s.stickers[i] = fmt.Sprintf("https://picsum.photos/seed/sticker%d/100/100", i)
	}
	log.Debug("seeded demo data")
	return
}
