package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/utils"
)

// AddFriend creates the undirected friend edge between the two ids.
// Both directions are written in one transaction so the relation can
// never be observed half-made. Unknown targets fail with ErrNotFound;
// re-adding an existing friend is a no-op.
func (s *Store) AddFriend(userID, friendID string) (err error) {
	if _, err = s.GetUser(friendID); err != nil {
		return
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "AddFriend")
	}
	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, err = tx.Exec("insert or ignore into friends(user_id, friend_id) values(?,?)", pair[0], pair[1]); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "AddFriend")
		}
	}
	return tx.Commit()
}

// SetRemark records userID's private alias for a friend.
func (s *Store) SetRemark(userID, friendID, remark string) (err error) {
	_, err = s.db.Exec("insert or replace into remarks(user_id, friend_id, remark) values(?,?,?)", userID, friendID, remark)
	if err != nil {
		err = errors.Wrap(err, "SetRemark")
	}
	return
}

// Contacts lists userID's friends enriched with each conversation's
// latest message preview. A non-empty q narrows the list to friends
// whose name, username, remark, or id contains it.
func (s *Store) Contacts(userID, q string) (contacts []Contact, err error) {
	q = strings.ToLower(q)
	rows, err := s.db.Query("select "+prefixedUserColumns+" from users u join friends f on u.id = f.friend_id where f.user_id = ?", userID)
	if err != nil {
		err = errors.Wrap(err, "Contacts")
		return
	}
	defer rows.Close()
	var friends []User
	for rows.Next() {
		var u User
		u, err = scanUser(rows)
		if err != nil {
			err = errors.Wrap(err, "Contacts")
			return
		}
		friends = append(friends, u)
	}
	if err = rows.Err(); err != nil {
		return
	}

	contacts = []Contact{}
	for _, friend := range friends {
		c := Contact{User: friend.Scrubbed()}
		c.Remark, err = s.remark(userID, friend.ID)
		if err != nil {
			return
		}
		last, found, err2 := s.latestMessage(ChatID(userID, friend.ID))
		if err2 != nil {
			err = err2
			return
		}
		if found {
			c.LastMessage = preview(last)
			c.LastMessageTimestamp = last.Timestamp
			c.LastMessageTime = utils.TimeAgo(time.UnixMilli(last.Timestamp))
		}
		if q != "" && !contactMatches(c, q) {
			continue
		}
		contacts = append(contacts, c)
	}
	return
}

func contactMatches(c Contact, q string) bool {
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Username), q) ||
		strings.Contains(strings.ToLower(c.Remark), q) ||
		strings.Contains(c.ID, q)
}

func preview(m Message) string {
	switch m.Kind {
	case KindImage:
		return "[Image]"
	case KindSticker:
		return "[Sticker]"
	default:
		return m.Content
	}
}

func (s *Store) remark(userID, friendID string) (remark string, err error) {
	err = s.db.QueryRow("select remark from remarks where user_id = ? and friend_id = ?", userID, friendID).Scan(&remark)
	if err == sql.ErrNoRows {
		err = nil
	} else if err != nil {
		err = errors.Wrap(err, "remark")
	}
	return
}
