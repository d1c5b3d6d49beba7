package models

// ChatRequest is the payload of one queued chat turn.
type ChatRequest struct {
	ConnectionID string
	Content      string
	PlayerName   string
	UseContext   bool
	Provider     string
	Delivery     DeliveryMode
}

// RequestEnvelope is one entry in the broker's priority queue. Ordering is
// by (Priority asc, Sequence asc): lower priority values are served first,
// and Sequence breaks ties by arrival order so that, independent of worker
// count, same-priority requests from one connection are processed in the
// order they were submitted.
type RequestEnvelope struct {
	Priority     int
	ConnectionID string
	Sequence     uint64
	Payload      ChatRequest
}

// ResponseItemType discriminates entries placed on a connection's response
// channel by internal/worker, consumed by internal/connection's sender loop.
type ResponseItemType string

const (
	ResponseGameMessage ResponseItemType = "game_message"
	ResponseRunCommand  ResponseItemType = "run_command"
)

// ResponseItem is one entry on a connection's response channel.
type ResponseItem struct {
	Type ResponseItemType

	// GameMessage fields (ResponseGameMessage).
	Chunk *StreamChunk

	// RunCommand fields (ResponseRunCommand): a raw MCBE command the
	// connection's sender should dispatch as a commandRequest frame, with
	// an optional future to resolve from the matching commandResponse.
	Command       string
	RequestID     string
	ResultFuture  *CommandFuture
}
