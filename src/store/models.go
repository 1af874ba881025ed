package store

// Message content kinds form a closed union. TEXT carries the string
// inline; IMAGE and STICKER carry an opaque locator or URL.
const (
	KindText    = "TEXT"
	KindImage   = "IMAGE"
	KindSticker = "STICKER"
)

const (
	// StatusActive and StatusLocked mirror the seeded account states.
	StatusActive = 1
	StatusLocked = 0

	// MessagePageSize and StickerPageSize are fixed for the system.
	MessagePageSize = 20
	StickerPageSize = 12
)

// User is one identity record. Password holds the credential digest
// and must be scrubbed before the record crosses the transport.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Name             string `json:"name"`
	Avatar           string `json:"avatar"`
	Password         string `json:"password"`
	Status           int    `json:"status"`
	SidebarWallpaper string `json:"sidebarWallpaper,omitempty"`
	ChatWallpaper    string `json:"chatWallpaper,omitempty"`
}

// Scrubbed returns a copy safe to send to a caller.
func (u User) Scrubbed() User {
	u.Password = ""
	return u
}

// Contact is a friend enriched with the latest conversation preview,
// used by the caller for ordering its sidebar.
type Contact struct {
	User
	Remark               string `json:"remark,omitempty"`
	LastMessage          string `json:"lastMessage"`
	LastMessageTime      string `json:"lastMessageTime,omitempty"`
	LastMessageTimestamp int64  `json:"lastMessageTimestamp,omitempty"`
}

// Message is one append-only entry in a conversation log. Read and
// Revoked are stored for fidelity with the schema but no handler
// transitions them.
type Message struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Kind      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"isRead"`
	Revoked   bool   `json:"isRevoked"`
}

// MessagePage is one page of a conversation, newest last. NextCursor
// feeds the next call's before bound.
type MessagePage struct {
	Data       []Message `json:"data"`
	HasMore    bool      `json:"hasMore"`
	NextCursor int64     `json:"nextCursor"`
}

// StickerPage is one page of the fixed catalog.
type StickerPage struct {
	Stickers   []string `json:"stickers"`
	HasMore    bool     `json:"hasMore"`
	Page       int      `json:"page"`
	Total      int      `json:"total"`
	TotalPages int      `json:"totalPages"`
}
