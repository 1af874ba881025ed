package store

import (
	"database/sql"

	"github.com/pkg/errors"
	strip "github.com/schollz/html-strip-tags-go"
)

const messageColumns = "id, sender_id, kind, content, created, is_read, is_revoked"

func scanMessage(row interface{ Scan(...interface{}) error }) (m Message, err error) {
	var read, revoked int
	err = row.Scan(&m.ID, &m.SenderID, &m.Kind, &m.Content, &m.Timestamp, &read, &revoked)
	m.Read = read == 1
	m.Revoked = revoked == 1
	return
}

// Messages returns one page of the conversation between userID and
// contactID: the newest MessagePageSize messages strictly older than
// before (zero means now), oldest first. NextCursor is the oldest
// timestamp in the page and feeds the next call's before bound.
func (s *Store) Messages(userID, contactID string, before int64) (page MessagePage, err error) {
	if before <= 0 {
		before = nowMillis()
	}
	rows, err := s.db.Query("select "+messageColumns+" from messages where chat_id = ? and created < ? order by created desc, id desc limit ?",
		ChatID(userID, contactID), before, MessagePageSize+1)
	if err != nil {
		err = errors.Wrap(err, "Messages")
		return
	}
	defer rows.Close()
	var newestFirst []Message
	for rows.Next() {
		var m Message
		m, err = scanMessage(rows)
		if err != nil {
			err = errors.Wrap(err, "Messages")
			return
		}
		newestFirst = append(newestFirst, m)
	}
	if err = rows.Err(); err != nil {
		return
	}

	if len(newestFirst) > MessagePageSize {
		page.HasMore = true
		newestFirst = newestFirst[:MessagePageSize]
	}
	page.Data = make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		page.Data[len(newestFirst)-1-i] = m
	}
	if len(page.Data) > 0 {
		page.NextCursor = page.Data[0].Timestamp
	}
	return
}

// AddMessage appends a message to the conversation between sender and
// receiver, stamping the server-assigned id and timestamp. Text content
// is stripped of HTML before it is stored.
func (s *Store) AddMessage(senderID, receiverID, kind, content string) (m Message, err error) {
	switch kind {
	case KindText:
		content = strip.StripTags(content)
	case KindImage, KindSticker:
	default:
		err = errors.Errorf("unknown message kind '%s'", kind)
		return
	}

	id := s.nextID()
	m = Message{
		ID:        formatID(id),
		SenderID:  senderID,
		Kind:      kind,
		Content:   content,
		Timestamp: id,
	}
	_, err = s.db.Exec("insert into messages(id, chat_id, sender_id, kind, content, created, is_read, is_revoked) values(?,?,?,?,?,?,0,0)",
		m.ID, ChatID(senderID, receiverID), m.SenderID, m.Kind, m.Content, m.Timestamp)
	if err != nil {
		err = errors.Wrap(err, "AddMessage")
	}
	return
}

func (s *Store) latestMessage(chatID string) (m Message, found bool, err error) {
	m, err = scanMessage(s.db.QueryRow("select "+messageColumns+" from messages where chat_id = ? order by created desc, id desc limit 1", chatID))
	if err == sql.ErrNoRows {
		err = nil
		return
	}
	if err != nil {
		err = errors.Wrap(err, "latestMessage")
		return
	}
	found = true
	return
}
