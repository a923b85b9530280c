package server

// Handler receives the demultiplexed session events of a server. T is the
// per-client state type; each Client carries one T slot managed by the
// handler.
//
// All three callbacks run on the event-loop goroutine, never concurrently.
// A callback must not block: the whole server stalls while it runs.
type Handler[T any] interface {
	// OnConnect fires exactly once per channel lifetime, the first time a
	// channel id is observed on a stream, before the triggering message's
	// payload (if any) is delivered.
	OnConnect(c *Client[T])

	// OnMessage fires for every decoded data message. payload is only
	// valid for the duration of the call; it aliases the stream's inbound
	// buffer.
	OnMessage(c *Client[T], payload []byte)

	// OnDisconnect fires when a disconnect message arrives for the
	// channel, or when the owning stream is torn down for any reason.
	// The handler must clear any state it installed with SetContext;
	// leftover state is logged as a usage warning.
	OnDisconnect(c *Client[T])
}
