// Package correlator maps conversation-id to a pending one-shot completion
// slot, with Add/Complete/Shutdown and fan-out-failure semantics.
package correlator

import (
	"fmt"
	"sync"

	"github.com/minghan/bond/pkg/protocol"
)

// Message is the minimal shape a completed pending slot carries: either a
// decoded user payload or a protocol-level Error. Callers of Complete
// decide which they have.
type Message struct {
	Payload []byte
	Err     error
}

// Slot is the single-shot completion handle returned by Add. Wait blocks
// until Complete or Shutdown resolves it.
type Slot struct {
	ch chan Message
}

// Wait blocks until the slot is completed, returning the resolved Message.
func (s *Slot) Wait() Message {
	return <-s.ch
}

// Chan exposes the slot's completion channel directly, for callers that
// need to select on it alongside something else (e.g. ctx.Done()) instead
// of blocking in Wait.
func (s *Slot) Chan() <-chan Message {
	return s.ch
}

// Correlator is a concurrent map of conversation-id to pending Slot. Add is
// called by request senders; Complete is called by the single receive loop;
// both are safe to call concurrently. After Shutdown the map is immutable.
type Correlator struct {
	mu       sync.Mutex
	pending  map[uint64]*Slot
	shutdown bool
}

// New returns an empty Correlator.
func New() *Correlator {
	return &Correlator{pending: make(map[uint64]*Slot)}
}

// Add inserts a pending entry for conversationID and returns its Slot.
// Calling Add twice with the same conversationID is a programmer error and
// panics. Calling Add after Shutdown is likewise fatal.
func (c *Correlator) Add(conversationID uint64) *Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		panic(fmt.Sprintf("correlator: Add(%d) after Shutdown", conversationID))
	}
	if _, exists := c.pending[conversationID]; exists {
		panic(fmt.Sprintf("correlator: duplicate Add(%d)", conversationID))
	}
	slot := &Slot{ch: make(chan Message, 1)}
	c.pending[conversationID] = slot
	return slot
}

// Complete resolves and removes the pending entry for conversationID,
// delivering msg to its waiter. Returns false if no entry was pending (e.g.
// an unmatched response). A second Complete for the same conversationID
// after it has already been resolved is observable here as "not present"
// and returns false — completion is at most once.
func (c *Correlator) Complete(conversationID uint64, msg Message) bool {
	c.mu.Lock()
	slot, ok := c.pending[conversationID]
	if ok {
		delete(c.pending, conversationID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	slot.ch <- msg
	return true
}

// Remove cancels a pending entry without resolving it through the normal
// completion path, used by per-request cancellation: the caller removes
// the slot and resolves its own awaiter directly, and any response that
// later arrives for that conversation-id is dropped by Complete returning
// false.
func (c *Correlator) Remove(conversationID uint64) {
	c.mu.Lock()
	delete(c.pending, conversationID)
	c.mu.Unlock()
}

// Shutdown marks the correlator terminal and completes every remaining
// pending entry with a synthetic TransportError. Subsequent Add calls
// panic; Shutdown itself is idempotent.
func (c *Correlator) Shutdown() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	remaining := c.pending
	c.pending = make(map[uint64]*Slot)
	c.mu.Unlock()

	err := protocol.NewTransportError("Connection was closed before response was received")
	for _, slot := range remaining {
		slot.ch <- Message{Err: err}
	}
}

// Len reports the number of currently pending entries. Intended for tests
// verifying that no pending slot remains after a connection stops.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
