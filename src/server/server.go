package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/sparrow996/chat-front/src/blob"
	"github.com/sparrow996/chat-front/src/envelope"
	"github.com/sparrow996/chat-front/src/keypair"
	"github.com/sparrow996/chat-front/src/logging"
	"github.com/sparrow996/chat-front/src/push"
	"github.com/sparrow996/chat-front/src/session"
	"github.com/sparrow996/chat-front/src/store"
)

// identityHeader names the caller. Its presence plus a registered
// session is the complete authentication check; nothing binds it to
// the encrypted body. That is a deliberate simplification of the
// reference protocol, kept as-is rather than silently hardened.
const identityHeader = "X-User-ID"

const ctxSession = "session"

// Server owns the transport: one keypair shared by every session, the
// session registry, the conversation store, the blob store, and the
// push hub. Construct with New and hand the Router to callers, or Run
// it on a port.
type Server struct {
	keys     *keypair.Manager
	registry *session.Registry
	db       *store.Store
	blobs    *blob.Store
	hub      *push.Hub
	router   *gin.Engine

	// Latency and QueueSize shape the simulated push channel. Change
	// them before the first Connect.
	Latency   time.Duration
	QueueSize int
}

func New(db *store.Store, blobs *blob.Store) (s *Server, err error) {
	s = &Server{
		keys:      keypair.New(),
		registry:  session.NewRegistry(),
		db:        db,
		blobs:     blobs,
		Latency:   push.DefaultLatency,
		QueueSize: 16,
	}
	s.hub = push.NewHub(s.registry)
	if _, err = s.keys.Ensure(); err != nil {
		return
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleWareHandler(), gin.CustomRecovery(s.recovered))

	r.GET("/auth/key", s.handleKey)
	r.POST("/auth/login", s.handleLogin)

	authed := r.Group("/", s.requireSession)
	authed.GET("/contacts", s.handleContacts)
	authed.POST("/contacts", s.handleAddFriend)
	authed.GET("/users/search", s.handleSearchUsers)
	authed.GET("/messages", s.handleMessages)
	authed.POST("/messages", s.handleSendMessage)
	authed.GET("/stickers", s.handleStickers)
	authed.POST("/upload", s.handleUpload)
	authed.PUT("/settings/profile", s.handleUpdateProfile)
	authed.PUT("/settings/appearance", s.handleUpdateAppearance)

	s.router = r
	return
}

// Router exposes the dispatch table as an http.Handler so callers can
// reach the server as a logical in-process call.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts listening on the port.
func (s *Server) Run(port string) error {
	logging.Log.Infof("listening on :%s", port)
	return s.router.Run(":" + port)
}

// Connect attaches a push sink for the identity and returns a detach
// function. Pushed envelopes arrive on fn in delivery order, each
// after the configured latency. Fails if the identity has not logged
// in.
func (s *Server) Connect(identityID string, fn func(envelope.Envelope)) (detach func(), err error) {
	q := push.NewQueue(s.QueueSize, s.Latency, fn)
	if !s.registry.AttachPush(identityID, q) {
		q.Close()
		err = errors.Errorf("no session for identity '%s'", identityID)
		return
	}
	logging.Log.Debugf("push sink attached for %s", identityID)
	detach = func() {
		s.registry.DetachPush(identityID)
		logging.Log.Debugf("push sink detached for %s", identityID)
	}
	return
}

func middleWareHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logging.Log.Debug(fmt.Sprintf("%v %v %v", c.Request.RemoteAddr, c.Request.Method, c.Request.URL))
		c.Next()
	}
}

// recovered downgrades any handler panic to a detail-free internal
// error; the full fault stays in the server log.
func (s *Server) recovered(c *gin.Context, recovered interface{}) {
	logging.Log.Errorf("panic in %v %v: %v", c.Request.Method, c.Request.URL, recovered)
	c.JSON(http.StatusInternalServerError, gin.H{"error": kindInternalError})
}

func (s *Server) requireSession(c *gin.Context) {
	id := c.GetHeader(identityHeader)
	sess, ok := s.registry.Lookup(id)
	if id == "" || !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": kindUnauthorized})
		return
	}
	c.Set(ctxSession, sess)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(ctxSession).(*session.Session)
}
