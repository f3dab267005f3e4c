package wsclient

import (
	"github.com/google/uuid"
)

// Handler receives the transport's lifecycle callbacks. All three methods
// must be invoked from a single goroutine per connection; the Client does
// no internal locking.
type Handler interface {
	// OnConnected reports that the byte stream is established and the
	// handshake may begin.
	OnConnected()

	// OnDisconnected reports that the byte stream is gone. It may be
	// delivered more than once; the Client tolerates repeats.
	OnDisconnected()

	// OnReceived delivers raw inbound bytes. The slice is only valid for
	// the duration of the call.
	OnReceived(p []byte)
}

// Transport is the byte-stream connection the protocol engine drives.
// See wsnet for a net.Conn implementation.
type Transport interface {
	// Bind registers the handler that receives lifecycle callbacks.
	// It must be called before Connect; New does this for you.
	Bind(h Handler)

	// Connect establishes the stream synchronously.
	Connect() error

	// ConnectAsync starts establishing the stream and returns without
	// waiting for it.
	ConnectAsync() error

	// Send writes p, blocking until the write is accepted.
	Send(p []byte) error

	// SendAsync queues p for writing and returns immediately.
	SendAsync(p []byte) error

	// DisconnectAsync requests a teardown. It must be safe to call at any
	// point, including mid-handshake and repeatedly.
	DisconnectAsync() error

	// ID returns the stable per-connection identifier. It seeds the
	// Sec-WebSocket-Key, so it must be regenerated for every connection.
	ID() uuid.UUID
}

// Addresser is implemented by transports that know the address they dial.
// When available it supplies the default Host header of the upgrade
// request.
type Addresser interface {
	Addr() string
}
