package store

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

const (
	userColumns         = "id, username, name, avatar, password, status, sidebar_wallpaper, chat_wallpaper"
	prefixedUserColumns = "u.id, u.username, u.name, u.avatar, u.password, u.status, u.sidebar_wallpaper, u.chat_wallpaper"
)

func scanUser(row interface{ Scan(...interface{}) error }) (u User, err error) {
	err = row.Scan(&u.ID, &u.Username, &u.Name, &u.Avatar, &u.Password, &u.Status, &u.SidebarWallpaper, &u.ChatWallpaper)
	return
}

// AddUser inserts or replaces an identity record.
func (s *Store) AddUser(u User) (err error) {
	_, err = s.db.Exec("insert or replace into users("+userColumns+") values(?,?,?,?,?,?,?,?)",
		u.ID, u.Username, u.Name, u.Avatar, u.Password, u.Status, u.SidebarWallpaper, u.ChatWallpaper)
	if err != nil {
		err = errors.Wrap(err, "AddUser")
	}
	return
}

// GetUser fetches one identity by id.
func (s *Store) GetUser(id string) (u User, err error) {
	u, err = scanUser(s.db.QueryRow("select "+userColumns+" from users where id = ?", id))
	if err == sql.ErrNoRows {
		err = ErrNotFound
	} else if err != nil {
		err = errors.Wrap(err, "GetUser")
	}
	return
}

// GetUserByUsername fetches one identity by username, case-insensitive.
func (s *Store) GetUserByUsername(username string) (u User, err error) {
	u, err = scanUser(s.db.QueryRow("select "+userColumns+" from users where username = ?", strings.ToLower(username)))
	if err == sql.ErrNoRows {
		err = ErrNotFound
	} else if err != nil {
		err = errors.Wrap(err, "GetUserByUsername")
	}
	return
}

// SearchUsers finds identities in the global directory, excluding the
// searcher: name or username containing q, or id exactly q.
func (s *Store) SearchUsers(selfID, q string) (results []User, err error) {
	q = strings.ToLower(q)
	rows, err := s.db.Query("select "+userColumns+" from users where id != ?", selfID)
	if err != nil {
		err = errors.Wrap(err, "SearchUsers")
		return
	}
	defer rows.Close()
	results = []User{}
	for rows.Next() {
		var u User
		u, err = scanUser(rows)
		if err != nil {
			err = errors.Wrap(err, "SearchUsers")
			return
		}
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			u.ID == q {
			results = append(results, u.Scrubbed())
		}
	}
	err = rows.Err()
	return
}

// UpdateProfile applies a partial update of name and avatar; empty
// fields are left alone. Returns the updated record.
func (s *Store) UpdateProfile(id, name, avatar string) (u User, err error) {
	u, err = s.GetUser(id)
	if err != nil {
		return
	}
	if name != "" {
		u.Name = name
	}
	if avatar != "" {
		u.Avatar = avatar
	}
	err = s.AddUser(u)
	return
}

// UpdateAppearance applies a partial update of the two wallpaper
// references. Nil leaves a field alone; an explicit empty string
// clears it.
func (s *Store) UpdateAppearance(id string, sidebar, chat *string) (u User, err error) {
	u, err = s.GetUser(id)
	if err != nil {
		return
	}
	if sidebar != nil {
		u.SidebarWallpaper = *sidebar
	}
	if chat != nil {
		u.ChatWallpaper = *chat
	}
	err = s.AddUser(u)
	return
}
