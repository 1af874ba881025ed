package client

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/envelope"
	"github.com/sparrow996/chat-front/src/keypair"
	"github.com/sparrow996/chat-front/src/logging"
	"github.com/sparrow996/chat-front/src/push"
	"github.com/sparrow996/chat-front/src/store"
	"github.com/sparrow996/chat-front/src/utils"
)

// Login failures surface distinctly; every other transport failure
// collapses to ErrRequestFailed for the calling layer. Ciphertext and
// key material never appear in an error.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrRequestFailed      = errors.New("request failed")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// Connector attaches a push listener for a logged-in identity.
type Connector interface {
	Connect(identityID string, fn func(envelope.Envelope)) (detach func(), err error)
}

// Client is the caller side of the transport: it fetches the server's
// public key, registers its own at login, seals every request against
// the server key, and opens every response with its own private key.
// One Client per logged-in identity.
type Client struct {
	http      *http.Client
	base      string
	keys      *keypair.Manager
	serverKey *rsa.PublicKey
	userID    string
	conn      Connector
}

// handlerTransport routes requests straight into an http.Handler. The
// channel is a logical in-process call, not a socket.
type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	return rec.Result(), nil
}

// New returns a client wired directly to an in-process handler. conn
// may be nil if the caller never listens for pushes.
func New(h http.Handler, conn Connector) *Client {
	return &Client{
		http: &http.Client{Transport: handlerTransport{h: h}},
		base: "http://server",
		keys: keypair.New(),
		conn: conn,
	}
}

// NewHTTP returns a client that talks to a real base URL. No push
// channel is available in this mode.
func NewHTTP(base string) *Client {
	return &Client{http: http.DefaultClient, base: base, keys: keypair.New()}
}

// UserID is the logged-in identity, empty before Login succeeds.
func (c *Client) UserID() string {
	return c.userID
}

// Handshake fetches and imports the server's public key. Login calls
// it automatically when needed.
func (c *Client) Handshake() (err error) {
	resp, err := c.http.Get(c.base + "/auth/key")
	if err != nil {
		return errors.Wrap(err, "handshake")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrRequestFailed
	}
	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "handshake")
	}
	c.serverKey, err = keypair.ParsePublicRecord(body.PublicKey)
	return
}

// Login hashes the credential, sends it with this client's public key
// under the handshake key, and keeps the decrypted identity. The
// credential digest is computed caller-side; the server only ever sees
// digests.
func (c *Client) Login(username, password string) (u store.User, err error) {
	if c.serverKey == nil {
		if err = c.Handshake(); err != nil {
			return
		}
	}
	record, err := c.keys.Ensure()
	if err != nil {
		return
	}

	e, err := envelope.Seal(map[string]string{
		"username":        username,
		"password":        utils.HashCredential(password),
		"clientPublicKey": record,
	}, c.serverKey)
	if err != nil {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	resp, err := c.http.Post(c.base+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		err = errors.Wrap(err, "login")
		return
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		err = ErrInvalidCredentials
		return
	case http.StatusForbidden:
		err = ErrAccountLocked
		return
	default:
		err = ErrRequestFailed
		return
	}

	var result struct {
		Status string     `json:"status"`
		User   store.User `json:"user"`
	}
	if err = c.openResponse(resp, &result); err != nil {
		return
	}
	c.userID = result.User.ID
	u = result.User
	return
}

// Contacts lists friends with their latest-message previews; q narrows
// by name, username, remark, or id.
func (c *Client) Contacts(q string) (contacts []store.Contact, err error) {
	var result struct {
		Data []store.Contact `json:"data"`
	}
	err = c.get("/contacts", url.Values{"q": {q}}, &result)
	contacts = result.Data
	return
}

// AddFriend creates the symmetric friend edge with the target user.
func (c *Client) AddFriend(friendID string) (err error) {
	var result struct {
		Status string `json:"status"`
	}
	return c.send(http.MethodPost, "/contacts", map[string]string{"friendId": friendID}, &result)
}

// SearchUsers queries the global directory, excluding the caller.
func (c *Client) SearchUsers(q string) (results []store.User, err error) {
	var result struct {
		Data []store.User `json:"data"`
	}
	err = c.get("/users/search", url.Values{"q": {q}}, &result)
	results = result.Data
	return
}

// Messages fetches one page of the conversation with contactID, newest
// last. A zero before means "now"; feed page.NextCursor back in to walk
// older history.
func (c *Client) Messages(contactID string, before int64) (page store.MessagePage, err error) {
	query := url.Values{"contactId": {contactID}}
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}
	err = c.get("/messages", query, &page)
	return
}

// SendMessage appends a message to the conversation with receiverID
// and returns the stored record with its server-assigned id and
// timestamp.
func (c *Client) SendMessage(receiverID, kind, content string) (m store.Message, err error) {
	if c.userID == "" {
		err = ErrNotLoggedIn
		return
	}
	payload, err := envelope.Seal(map[string]string{"type": kind, "content": content}, c.serverKey)
	if err != nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{"receiverId": receiverID, "payload": payload})
	if err != nil {
		return
	}
	var result struct {
		Message store.Message `json:"message"`
	}
	err = c.do(http.MethodPost, "/messages", nil, bytes.NewReader(body), "application/json", &result)
	m = result.Message
	return
}

// Stickers fetches one page of the catalog.
func (c *Client) Stickers(page int) (sp store.StickerPage, err error) {
	err = c.get("/stickers", url.Values{"page": {strconv.Itoa(page)}}, &sp)
	return
}

// Upload stores a binary with the server's blob store and returns its
// locator.
func (c *Client) Upload(filename string, data []byte) (locator string, err error) {
	if c.userID == "" {
		err = ErrNotLoggedIn
		return
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return
	}
	if _, err = part.Write(data); err != nil {
		return
	}
	if err = w.Close(); err != nil {
		return
	}
	var result struct {
		URL string `json:"url"`
	}
	err = c.do(http.MethodPost, "/upload", nil, &buf, w.FormDataContentType(), &result)
	locator = result.URL
	return
}

// UpdateProfile partially updates name and avatar; empty fields are
// left alone.
func (c *Client) UpdateProfile(name, avatar string) (u store.User, err error) {
	var result struct {
		Status string     `json:"status"`
		User   store.User `json:"user"`
	}
	err = c.send(http.MethodPut, "/settings/profile", map[string]string{"name": name, "avatar": avatar}, &result)
	u = result.User
	return
}

// UpdateAppearance updates the wallpaper references. Nil leaves a
// field alone; pointing at an empty string clears it.
func (c *Client) UpdateAppearance(sidebar, chat *string) (u store.User, err error) {
	var result struct {
		Status string     `json:"status"`
		User   store.User `json:"user"`
	}
	err = c.send(http.MethodPut, "/settings/appearance", map[string]*string{
		"sidebarWallpaper": sidebar,
		"chatWallpaper":    chat,
	}, &result)
	u = result.User
	return
}

// ConnectPush attaches a listener for server-initiated events. fn runs
// once per decrypted new message, in delivery order. The returned
// detach function is idempotent.
func (c *Client) ConnectPush(fn func(store.Message)) (detach func(), err error) {
	if c.conn == nil {
		err = errors.New("client has no push connector")
		return
	}
	if c.userID == "" {
		err = ErrNotLoggedIn
		return
	}
	priv, err := c.keys.Private()
	if err != nil {
		return
	}
	return c.conn.Connect(c.userID, func(e envelope.Envelope) {
		var ev struct {
			Type string        `json:"type"`
			Data store.Message `json:"data"`
		}
		if err := envelope.Open(e, priv, &ev); err != nil {
			logging.Log.Warnf("could not open pushed envelope: %s", err)
			return
		}
		if ev.Type == push.TypeNewMessage {
			fn(ev.Data)
		}
	})
}

// get performs an authenticated GET and opens the sealed response.
func (c *Client) get(path string, query url.Values, v interface{}) (err error) {
	if c.userID == "" {
		return ErrNotLoggedIn
	}
	return c.do(http.MethodGet, path+"?"+query.Encode(), nil, nil, "", v)
}

// send wraps a payload in {"payload": envelope}, performs the request,
// and opens the sealed response.
func (c *Client) send(method, path string, payload interface{}, v interface{}) (err error) {
	if c.userID == "" {
		return ErrNotLoggedIn
	}
	sealed, err := envelope.Seal(payload, c.serverKey)
	if err != nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{"payload": sealed})
	if err != nil {
		return
	}
	return c.do(method, path, nil, bytes.NewReader(body), "application/json", v)
}

func (c *Client) do(method, path string, query url.Values, body io.Reader, contentType string, v interface{}) (err error) {
	target := c.base + path
	if query != nil {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Log.Warnf("%s %s: %s", method, path, err)
		return ErrRequestFailed
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.Log.Warnf("%s %s: status %d", method, path, resp.StatusCode)
		return ErrRequestFailed
	}
	return c.openResponse(resp, v)
}

func (c *Client) openResponse(resp *http.Response, v interface{}) (err error) {
	var e envelope.Envelope
	if err = json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return ErrRequestFailed
	}
	priv, err := c.keys.Private()
	if err != nil {
		return
	}
	if err = envelope.Open(e, priv, v); err != nil {
		return ErrRequestFailed
	}
	return
}
