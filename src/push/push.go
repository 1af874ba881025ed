package push

import (
	"sync"
	"time"

	"github.com/sparrow996/chat-front/src/envelope"
	"github.com/sparrow996/chat-front/src/logging"
	"github.com/sparrow996/chat-front/src/session"
)

// TypeNewMessage is the event tag pushed when a message arrives for a
// connected identity.
const TypeNewMessage = "NEW_MESSAGE"

// DefaultLatency simulates the delay of a real notification channel.
const DefaultLatency = 100 * time.Millisecond

// Event is the plaintext form of a server-initiated notification. It
// is sealed for the recipient before it ever leaves the hub.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub delivers events to connected identities, best effort. An event
// for an identity with no attached sink is dropped, not queued.
type Hub struct {
	registry *session.Registry
}

func NewHub(registry *session.Registry) *Hub {
	return &Hub{registry: registry}
}

// Deliver seals the event against the identity's registered key and
// hands it to the identity's sink. Per-identity ordering follows the
// order of Deliver calls; there is no global ordering.
func (h *Hub) Deliver(identityID string, ev Event) {
	sink, pub, ok := h.registry.PushTarget(identityID)
	if !ok {
		logging.Log.Debugf("dropping %s event for %s: not connected", ev.Type, identityID)
		return
	}
	e, err := envelope.Seal(ev, pub)
	if err != nil {
		logging.Log.Warnf("could not seal %s event for %s: %s", ev.Type, identityID, err)
		return
	}
	sink.Send(e)
}

// Queue is a bounded ordered sink for one identity. A single goroutine
// drains it, sleeping the simulated latency before each handoff, so
// envelopes reach the receiver in enqueue order. Send never blocks: a
// full queue drops the event, keeping delivery at-most-once.
type Queue struct {
	ch      chan envelope.Envelope
	closing sync.Once
	done    chan struct{}
}

// NewQueue starts the drain goroutine. fn runs on that goroutine, once
// per envelope.
func NewQueue(size int, latency time.Duration, fn func(envelope.Envelope)) (q *Queue) {
	q = &Queue{
		ch:   make(chan envelope.Envelope, size),
		done: make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for e := range q.ch {
			time.Sleep(latency)
			fn(e)
		}
	}()
	return
}

func (q *Queue) Send(e envelope.Envelope) {
	defer func() {
		// Send racing Close loses the event, which at-most-once allows.
		recover()
	}()
	select {
	case q.ch <- e:
	default:
		logging.Log.Debug("push queue full, dropping event")
	}
}

// Close stops the drain goroutine after the queue empties. Idempotent.
func (q *Queue) Close() {
	q.closing.Do(func() { close(q.ch) })
}
