package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/blob"
	"github.com/sparrow996/chat-front/src/envelope"
	"github.com/sparrow996/chat-front/src/logging"
	"github.com/sparrow996/chat-front/src/push"
	"github.com/sparrow996/chat-front/src/session"
	"github.com/sparrow996/chat-front/src/store"
)

// Error kinds returned to callers. Short and machine-readable; any
// detail stays in the server log.
const (
	kindInvalidCredentials = "invalid_credentials"
	kindAccountLocked      = "account_locked"
	kindUnauthorized       = "unauthorized"
	kindDecryptionFailure  = "decryption_failure"
	kindNotFound           = "not_found"
	kindUploadFailure      = "upload_failure"
	kindInternalError      = "internal_error"
)

type loginRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ClientPublicKey string `json:"clientPublicKey"`
}

// wrappedBody is the shape of every authenticated request that carries
// an encrypted body.
type wrappedBody struct {
	Payload envelope.Envelope `json:"payload"`
}

// GET /auth/key
// The one response sent in the clear: no shared secret exists yet.
func (s *Server) handleKey(c *gin.Context) {
	record, err := s.keys.Ensure()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": record})
}

// POST /auth/login
// The body is sealed under the handshake key; the caller has no
// session yet, so the reply is sealed for the key carried inside the
// decrypted body itself.
func (s *Server) handleLogin(c *gin.Context) {
	var e envelope.Envelope
	if err := c.ShouldBindJSON(&e); err != nil {
		s.fail(c, errors.Wrap(err, "binding login body"))
		return
	}
	var req loginRequest
	if err := s.open(e, &req); err != nil {
		s.fail(c, err)
		return
	}

	u, err := s.db.GetUserByUsername(req.Username)
	if err != nil || u.Password != req.Password {
		logging.Log.Infof("failed login for '%s'", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": kindInvalidCredentials})
		return
	}
	if u.Status == store.StatusLocked {
		logging.Log.Infof("login to locked account '%s'", req.Username)
		c.JSON(http.StatusForbidden, gin.H{"error": kindAccountLocked})
		return
	}

	pub, err := s.keys.ImportPeer(req.ClientPublicKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	// session must be published before the response is visible
	sess := s.registry.Register(u.ID, pub)
	logging.Log.Infof("session registered for %s", u.ID)
	s.respondSealed(c, sess, gin.H{"status": "ok", "user": u.Scrubbed()})
}

// GET /contacts?q=
func (s *Server) handleContacts(c *gin.Context) {
	sess := currentSession(c)
	contacts, err := s.db.Contacts(sess.IdentityID, c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"data": contacts})
}

// POST /contacts
func (s *Server) handleAddFriend(c *gin.Context) {
	sess := currentSession(c)
	var body wrappedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errors.Wrap(err, "binding add-friend body"))
		return
	}
	var req struct {
		FriendID string `json:"friendId"`
	}
	if err := s.open(body.Payload, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.db.AddFriend(sess.IdentityID, req.FriendID); err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"status": "ok"})
}

// GET /users/search?q=
func (s *Server) handleSearchUsers(c *gin.Context) {
	sess := currentSession(c)
	results, err := s.db.SearchUsers(sess.IdentityID, c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"data": results})
}

// GET /messages?contactId=&before=
func (s *Server) handleMessages(c *gin.Context) {
	sess := currentSession(c)
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	page, err := s.db.Messages(sess.IdentityID, c.Query("contactId"), before)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, page)
}

// POST /messages
func (s *Server) handleSendMessage(c *gin.Context) {
	sess := currentSession(c)
	var body struct {
		ReceiverID string            `json:"receiverId"`
		Payload    envelope.Envelope `json:"payload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errors.Wrap(err, "binding send body"))
		return
	}
	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := s.open(body.Payload, &req); err != nil {
		s.fail(c, err)
		return
	}

	m, err := s.db.AddMessage(sess.IdentityID, body.ReceiverID, req.Type, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	// the message is appended before any event referencing it goes out
	s.hub.Deliver(body.ReceiverID, push.Event{Type: push.TypeNewMessage, Data: m})
	s.respondSealed(c, sess, gin.H{"message": m})
}

// GET /stickers?page=
func (s *Server) handleStickers(c *gin.Context) {
	sess := currentSession(c)
	page, _ := strconv.Atoi(c.Query("page"))
	s.respondSealed(c, sess, s.db.Stickers(page))
}

// POST /upload
func (s *Server) handleUpload(c *gin.Context) {
	sess := currentSession(c)
	file, err := c.FormFile("file")
	if err != nil {
		s.fail(c, errors.Wrap(blob.ErrEmpty, "no file provided"))
		return
	}
	data, err := readFormFile(file)
	if err != nil {
		s.fail(c, err)
		return
	}
	locator, err := s.blobs.Store(data)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"url": locator})
}

// PUT /settings/profile
func (s *Server) handleUpdateProfile(c *gin.Context) {
	sess := currentSession(c)
	var body wrappedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errors.Wrap(err, "binding profile body"))
		return
	}
	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := s.open(body.Payload, &req); err != nil {
		s.fail(c, err)
		return
	}
	u, err := s.db.UpdateProfile(sess.IdentityID, req.Name, req.Avatar)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"status": "ok", "user": u.Scrubbed()})
}

// PUT /settings/appearance
func (s *Server) handleUpdateAppearance(c *gin.Context) {
	sess := currentSession(c)
	var body wrappedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errors.Wrap(err, "binding appearance body"))
		return
	}
	var req struct {
		SidebarWallpaper *string `json:"sidebarWallpaper"`
		ChatWallpaper    *string `json:"chatWallpaper"`
	}
	if err := s.open(body.Payload, &req); err != nil {
		s.fail(c, err)
		return
	}
	u, err := s.db.UpdateAppearance(sess.IdentityID, req.SidebarWallpaper, req.ChatWallpaper)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondSealed(c, sess, gin.H{"status": "ok", "user": u.Scrubbed()})
}

// open decrypts a request envelope with the server's private key.
func (s *Server) open(e envelope.Envelope, v interface{}) error {
	priv, err := s.keys.Private()
	if err != nil {
		return err
	}
	return envelope.Open(e, priv, v)
}

// respondSealed encrypts the response against the session's registered
// key.
func (s *Server) respondSealed(c *gin.Context, sess *session.Session, v interface{}) {
	e, err := envelope.Seal(v, sess.PublicKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// fail maps an error to its taxonomy kind. Unexpected faults collapse
// to internal_error with no detail for the caller.
func (s *Server) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	logging.Log.Warnf("%v %v failed (%s): %s", c.Request.Method, c.Request.URL.Path, kind, err)
	c.JSON(status, gin.H{"error": kind})
}

func classify(err error) (int, string) {
	switch errors.Cause(err) {
	case envelope.ErrDecryptionFailed:
		return http.StatusBadRequest, kindDecryptionFailure
	case store.ErrNotFound:
		return http.StatusNotFound, kindNotFound
	case blob.ErrEmpty, blob.ErrNotFound:
		return http.StatusBadRequest, kindUploadFailure
	default:
		return http.StatusInternalServerError, kindInternalError
	}
}

func readFormFile(file *multipart.FileHeader) (data []byte, err error) {
	src, err := file.Open()
	if err != nil {
		return
	}
	defer src.Close()
	buf := bytes.NewBuffer(nil)
	_, err = io.Copy(buf, src)
	data = buf.Bytes()
	return
}
