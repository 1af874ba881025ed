package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sparrow996/chat-front/src/blob"
	"github.com/sparrow996/chat-front/src/client"
	"github.com/sparrow996/chat-front/src/store"
)

func newTestServer(t *testing.T) *Server {
	db, err := store.Open()
	assert.Nil(t, err)
	assert.Nil(t, db.SeedDemo())
	s, err := New(db, blob.NewStore())
	assert.Nil(t, err)
	s.Latency = 5 * time.Millisecond
	t.Cleanup(func() { db.Close() })
	return s
}

func login(t *testing.T, s *Server, username string) *client.Client {
	c := client.New(s.Router(), s)
	_, err := c.Login(username, "123")
	assert.Nil(t, err)
	return c
}

func TestLoginSuccessScrubsCredential(t *testing.T) {
	s := newTestServer(t)
	c := client.New(s.Router(), s)

	u, err := c.Login("alice", "123")
	assert.Nil(t, err)
	assert.Equal(t, "10001", u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "", u.Password)
	assert.Equal(t, "10001", c.UserID())
}

func TestLoginWrongCredential(t *testing.T) {
	s := newTestServer(t)
	c := client.New(s.Router(), s)
	_, err := c.Login("alice", "wrong")
	assert.Equal(t, client.ErrInvalidCredentials, err)
	_, err = c.Login("nobody", "123")
	assert.Equal(t, client.ErrInvalidCredentials, err)
}

func TestLoginLockedAccount(t *testing.T) {
	s := newTestServer(t)
	alice, err := s.db.GetUserByUsername("alice")
	assert.Nil(t, err)
	assert.Nil(t, s.db.AddUser(store.User{
		ID: "10009", Username: "mallory", Name: "Mallory",
		Password: alice.Password, Status: store.StatusLocked,
	}))

	c := client.New(s.Router(), s)
	_, err = c.Login("mallory", "123")
	assert.Equal(t, client.ErrAccountLocked, err)
}

func TestAuthGateOnEveryRoute(t *testing.T) {
	s := newTestServer(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/contacts"},
		{http.MethodPost, "/contacts"},
		{http.MethodGet, "/users/search"},
		{http.MethodGet, "/messages"},
		{http.MethodPost, "/messages"},
		{http.MethodGet, "/stickers"},
		{http.MethodPost, "/upload"},
		{http.MethodPut, "/settings/profile"},
		{http.MethodPut, "/settings/appearance"},
	}
	for _, route := range routes {
		// claimed identity exists but never logged in
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("X-User-ID", "10001")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		assert.Contains(t, rec.Body.String(), "unauthorized")

		// no identity header at all
		req = httptest.NewRequest(route.method, route.path, nil)
		rec = httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// the handshake stays open
	req := httptest.NewRequest(http.MethodGet, "/auth/key", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTamperedRequestFailsClosed(t *testing.T) {
	s := newTestServer(t)
	login(t, s, "alice")

	// a session exists, but the body was not sealed with the server key
	body := `{"payload":{"key":"Z2FyYmFnZQ==","iv":"AAAAAAAAAAAAAAAA","data":"Z2FyYmFnZQ=="}}`
	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "10001")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "decryption_failure")
}

func TestMessagingWithPush(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")

	received := make(chan store.Message, 4)
	detach, err := bob.ConnectPush(func(m store.Message) { received <- m })
	assert.Nil(t, err)
	defer detach()

	sent, err := alice.SendMessage("10002", store.KindText, "hi")
	assert.Nil(t, err)
	assert.Equal(t, "hi", sent.Content)
	assert.Equal(t, "10001", sent.SenderID)

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, "hi", got.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("push event never arrived")
	}
	// exactly one event
	select {
	case <-received:
		t.Fatal("duplicate push event")
	case <-time.After(50 * time.Millisecond):
	}

	page, err := alice.Messages("10002", 0)
	assert.Nil(t, err)
	newest := page.Data[len(page.Data)-1]
	assert.Equal(t, sent.ID, newest.ID)
}

func TestPushDroppedAfterDetach(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")

	received := make(chan store.Message, 4)
	detach, err := bob.ConnectPush(func(m store.Message) { received <- m })
	assert.Nil(t, err)
	detach()
	detach() // idempotent

	_, err = alice.SendMessage("10002", store.KindText, "into the void")
	assert.Nil(t, err)
	select {
	case <-received:
		t.Fatal("event delivered after detach")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPaginationScenario(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")

	page, err := alice.Messages("10002", 0)
	assert.Nil(t, err)
	assert.Equal(t, store.MessagePageSize, len(page.Data))
	assert.True(t, page.HasMore)

	seen := map[string]bool{}
	for _, m := range page.Data {
		seen[m.ID] = true
	}
	total := len(page.Data)
	for page.HasMore {
		page, err = alice.Messages("10002", page.NextCursor)
		assert.Nil(t, err)
		for _, m := range page.Data {
			assert.False(t, seen[m.ID])
			seen[m.ID] = true
		}
		total += len(page.Data)
	}
	assert.Equal(t, 50, total)
}

func TestContactsAndAddFriend(t *testing.T) {
	s := newTestServer(t)
	charlie := login(t, s, "charlie")
	david := login(t, s, "david")

	contacts, err := charlie.Contacts("")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(contacts))

	assert.Nil(t, charlie.AddFriend("10004"))

	contacts, err = charlie.Contacts("")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(contacts))
	assert.Equal(t, "10004", contacts[0].ID)

	mutuals, err := david.Contacts("")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(mutuals))
	assert.Equal(t, "10003", mutuals[0].ID)

	err = charlie.AddFriend("99999")
	assert.Equal(t, client.ErrRequestFailed, err)
}

func TestSearchUsers(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")

	results, err := alice.SearchUsers("eva")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(results))
	assert.Equal(t, "10005", results[0].ID)
	assert.Equal(t, "", results[0].Password)
}

func TestStickerPagingScenario(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")

	page, err := alice.Stickers(1)
	assert.Nil(t, err)
	assert.Equal(t, store.StickerPageSize, len(page.Stickers))
	assert.Equal(t, 5, page.TotalPages)
	assert.Equal(t, 60, page.Total)
	assert.True(t, page.HasMore)

	last, err := alice.Stickers(5)
	assert.Nil(t, err)
	assert.Equal(t, store.StickerPageSize, len(last.Stickers))
	assert.False(t, last.HasMore)
}

func TestUploadRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")

	locator, err := alice.Upload("avatar.png", []byte{0x89, 'P', 'N', 'G'})
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(locator, "blob:"))

	data, err := s.blobs.Retrieve(locator)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestSettingsUpdates(t *testing.T) {
	s := newTestServer(t)
	alice := login(t, s, "alice")

	u, err := alice.UpdateProfile("Alice Liddell", "")
	assert.Nil(t, err)
	assert.Equal(t, "Alice Liddell", u.Name)
	assert.Equal(t, "", u.Password)

	wallpaper := "blob:wallpaper"
	u, err = alice.UpdateAppearance(&wallpaper, nil)
	assert.Nil(t, err)
	assert.Equal(t, wallpaper, u.SidebarWallpaper)

	empty := ""
	u, err = alice.UpdateAppearance(&empty, nil)
	assert.Nil(t, err)
	assert.Equal(t, "", u.SidebarWallpaper)
}
