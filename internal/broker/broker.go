// Package broker implements the message broker: a bounded priority
// request queue, per-connection response queues, per-connection
// serialization locks, and per-connection conversation history storage.
// It is the hand-off point between internal/connection (producer) and
// internal/worker (consumer).
package broker

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// connectionState holds everything the broker tracks for one registered
// connection: its response channel, its per-connection serialization lock
// (taken by a worker for the duration of one request), and its lazily
// populated conversation history.
type connectionState struct {
	lock      *sync.Mutex
	responses chan models.ResponseItem
	historyMu sync.Mutex
	history   []models.ModelMessage

	// sendMu guards responses against a send racing its own close: every
	// send and the one close both happen while holding this lock, so
	// UnregisterConnection can never close the channel out from under a
	// concurrent SendResponse.
	sendMu sync.Mutex
	closed bool
}

// Broker is the concurrency-safe hub workers and connections hand requests
// and responses through. Safe for concurrent use.
type Broker struct {
	logger *slog.Logger

	capacity int
	sequence uint64

	queueMu sync.Mutex
	queue   envelopeHeap
	notify  chan struct{}

	connMu      sync.RWMutex
	connections map[string]*connectionState

	// responseBuffer bounds each connection's response channel; a very
	// large buffer stands in for an unbounded queue while still avoiding
	// unbounded goroutine growth from a stalled MCBE client.
	responseBuffer int
}

// New returns a Broker with the given request queue capacity.
// responseBuffer bounds each per-connection response channel; a
// generously sized buffer approximates an unbounded queue without an
// actually-unbounded channel.
func New(logger *slog.Logger, capacity, responseBuffer int) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if responseBuffer <= 0 {
		responseBuffer = 4096
	}
	b := &Broker{
		logger:         logger,
		capacity:       capacity,
		queue:          make(envelopeHeap, 0),
		notify:         make(chan struct{}, capacity+1),
		connections:    make(map[string]*connectionState),
		responseBuffer: responseBuffer,
	}
	heap.Init(&b.queue)
	return b
}

// SubmitRequest enqueues payload for connID at the given priority
// (lower value = earlier). Non-blocking; returns ErrQueueFull at capacity.
func (b *Broker) SubmitRequest(connID string, payload models.ChatRequest, priority int) error {
	b.queueMu.Lock()
	if b.capacity > 0 && b.queue.Len() >= b.capacity {
		b.queueMu.Unlock()
		return ErrQueueFull
	}
	seq := atomic.AddUint64(&b.sequence, 1)
	heap.Push(&b.queue, models.RequestEnvelope{
		Priority:     priority,
		ConnectionID: connID,
		Sequence:     seq,
		Payload:      payload,
	})
	b.queueMu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
		// Queue depth already has an outstanding notification pending;
		// GetRequest will drain until empty on its next wake regardless.
	}
	return nil
}

// GetRequest blocks until an envelope is available or ctx is done.
func (b *Broker) GetRequest(ctx context.Context) (models.RequestEnvelope, error) {
	for {
		b.queueMu.Lock()
		if b.queue.Len() > 0 {
			item := heap.Pop(&b.queue).(models.RequestEnvelope)
			b.queueMu.Unlock()
			return item, nil
		}
		b.queueMu.Unlock()

		select {
		case <-ctx.Done():
			return models.RequestEnvelope{}, ctx.Err()
		case <-b.notify:
			// loop and re-check; another goroutine may have won the race
		}
	}
}

// RequestDone marks the previously returned GetRequest envelope as
// processed. The queue has no join/wait-group semantics to maintain, so
// this is a no-op kept for callers that expect a completion signal.
func (b *Broker) RequestDone() {}

// QueueLen reports the current number of envelopes waiting in the
// priority queue, for observability's queue-depth gauge.
func (b *Broker) QueueLen() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return b.queue.Len()
}

// ConnectionCount reports the number of currently registered connections,
// for observability's active-connections gauge.
func (b *Broker) ConnectionCount() int {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return len(b.connections)
}

// RegisterConnection creates a response channel, serialization lock, and
// empty history slot for connID. Idempotent: a duplicate id logs a warning
// and returns the existing channel rather than erroring.
func (b *Broker) RegisterConnection(connID string) <-chan models.ResponseItem {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if existing, ok := b.connections[connID]; ok {
		b.logger.Warn("broker: duplicate connection registration", "connection_id", connID)
		return existing.responses
	}

	state := &connectionState{
		lock:      &sync.Mutex{},
		responses: make(chan models.ResponseItem, b.responseBuffer),
		history:   nil,
	}
	b.connections[connID] = state
	return state.responses
}

// UnregisterConnection drops connID's response channel, lock, and history.
// Any ResponseItem left in the channel carrying an unresolved CommandFuture
// is resolved as closed so RPC callers waiting on it don't block forever.
func (b *Broker) UnregisterConnection(connID string) {
	b.connMu.Lock()
	state, ok := b.connections[connID]
	if !ok {
		b.connMu.Unlock()
		return
	}
	delete(b.connections, connID)
	b.connMu.Unlock()

	state.sendMu.Lock()
	state.closed = true
	close(state.responses)
	state.sendMu.Unlock()

	for item := range state.responses {
		if item.ResultFuture != nil {
			item.ResultFuture.Resolve("命令执行失败: 连接已关闭")
		}
	}
}

// SendResponse enqueues item onto connID's response channel. Returns false
// if connID is not registered or has already been unregistered. Holding
// sendMu across the send and the paired close in UnregisterConnection
// rules out a send racing the channel being closed out from under it.
func (b *Broker) SendResponse(connID string, item models.ResponseItem) bool {
	b.connMu.RLock()
	state, ok := b.connections[connID]
	b.connMu.RUnlock()
	if !ok {
		return false
	}

	state.sendMu.Lock()
	defer state.sendMu.Unlock()
	if state.closed {
		return false
	}
	state.responses <- item
	return true
}

// GetConnectionLock returns connID's per-connection serialization mutex.
// Workers hold it for the duration of one request so in-order per-connection
// processing holds even when multiple workers are draining the queue.
func (b *Broker) GetConnectionLock(connID string) (*sync.Mutex, bool) {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	state, ok := b.connections[connID]
	if !ok {
		return nil, false
	}
	return state.lock, true
}

// GetConversationHistory returns a copy of connID's history. Value
// semantics: mutating the returned slice or its messages never affects the
// broker's stored copy.
func (b *Broker) GetConversationHistory(connID string) ([]models.ModelMessage, bool) {
	state, ok := b.connectionState(connID)
	if !ok {
		return nil, false
	}
	state.historyMu.Lock()
	defer state.historyMu.Unlock()
	return cloneHistory(state.history), true
}

// SetConversationHistory replaces connID's history with a copy of history.
func (b *Broker) SetConversationHistory(connID string, history []models.ModelMessage) bool {
	state, ok := b.connectionState(connID)
	if !ok {
		return false
	}
	state.historyMu.Lock()
	defer state.historyMu.Unlock()
	state.history = cloneHistory(history)
	return true
}

// ClearConversationHistory empties connID's history.
func (b *Broker) ClearConversationHistory(connID string) bool {
	return b.SetConversationHistory(connID, nil)
}

func (b *Broker) connectionState(connID string) (*connectionState, bool) {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	state, ok := b.connections[connID]
	return state, ok
}

func cloneHistory(history []models.ModelMessage) []models.ModelMessage {
	if history == nil {
		return nil
	}
	out := make([]models.ModelMessage, len(history))
	for i, msg := range history {
		out[i] = msg.CloneShallow()
	}
	return out
}
