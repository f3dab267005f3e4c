package wsclient

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/jai-jae/wsclient/internal/errd"
)

// ConnectionState is the handshake state of a connection.
type ConnectionState int

const (
	// StateIdle means no connection attempt is in flight.
	StateIdle ConnectionState = iota
	// StateHandshakePending means the transport is connected and the
	// upgrade exchange has not completed.
	StateHandshakePending
	// StateHandshaked means the upgrade response validated and frames may
	// be sent. A connection enters this state at most once.
	StateHandshaked
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateHandshakePending:
		return "HandshakePending"
	case StateHandshaked:
		return "Handshaked"
	}
	return "Unknown"
}

// Options configures a Client. All callbacks are optional and are invoked
// from the transport's callback goroutine.
type Options struct {
	// OnWSConnecting lets the application mutate the upgrade request
	// before it is sent: set the target, the Host header, cookies and so
	// on. The Upgrade-related headers are already filled in.
	OnWSConnecting func(req *Request)

	// OnWSConnected fires once per connection after the upgrade response
	// validates, with the mask key already seeded.
	OnWSConnected func(resp *Response)

	// OnWSDisconnected fires at most once per handshaked period, even if
	// the transport reports the teardown more than once.
	OnWSDisconnected func()

	// OnError reports a failed handshake. Every report is terminal for
	// the attempt and is accompanied by an asynchronous disconnect.
	OnError func(kind ErrorKind, msg string)

	// OnFrameData receives inbound bytes once handshaked, including any
	// bytes the server sent in the same segment as the upgrade response.
	// Frame decoding is the receiver's business.
	OnFrameData func(p []byte)

	// Entropy sources the 4-byte mask key. It defaults to
	// crypto/rand.Reader; tests may seed a deterministic reader. RFC 6455
	// only asks the key to be unpredictable, not cryptographic.
	Entropy io.Reader
}

// Client drives the WebSocket handshake and outbound framing over a
// Transport. Its Handler methods must be invoked from the transport's
// single callback goroutine; Client does no locking of its own.
type Client struct {
	tr   Transport
	opts Options

	state    ConnectionState
	failed   bool
	syncSend bool
	key      string

	req    Request
	parser responseParser
	enc    frameEncoder
}

var _ Handler = (*Client)(nil)

// New creates a Client over tr and binds itself as the transport handler.
func New(tr Transport, opts Options) *Client {
	if opts.Entropy == nil {
		opts.Entropy = rand.Reader
	}
	c := &Client{
		tr:   tr,
		opts: opts,
	}
	tr.Bind(c)
	return c
}

// State returns the current handshake state.
func (c *Client) State() ConnectionState {
	return c.state
}

// Handshaked reports whether the upgrade completed for the current
// connection.
func (c *Client) Handshaked() bool {
	return c.state == StateHandshaked
}

// Connect establishes the connection synchronously. The handshake request
// and every subsequent frame go out through blocking sends.
func (c *Client) Connect() (err error) {
	defer errd.Wrap(&err, "failed to connect")

	c.syncSend = true
	return c.tr.Connect()
}

// ConnectAsync starts establishing the connection without waiting. The
// handshake request and every subsequent frame go out through queued sends.
func (c *Client) ConnectAsync() (err error) {
	defer errd.Wrap(&err, "failed to connect")

	c.syncSend = false
	return c.tr.ConnectAsync()
}

// DisconnectAsync requests a teardown. Safe at any point, including
// mid-handshake.
func (c *Client) DisconnectAsync() error {
	return c.tr.DisconnectAsync()
}

// OnConnected implements Handler. It builds the upgrade request, hands it
// to the application and sends it.
func (c *Client) OnConnected() {
	c.state = StateHandshakePending
	c.failed = false

	id := c.tr.ID()
	c.key = base64.StdEncoding.EncodeToString(id[:])

	c.req.reset()
	buildUpgradeRequest(&c.req, c.key)
	if a, ok := c.tr.(Addresser); ok && c.req.Get("Host") == "" {
		c.req.Set("Host", a.Addr())
	}
	if c.opts.OnWSConnecting != nil {
		c.opts.OnWSConnecting(&c.req)
	}

	if err := c.send(c.req.bytes()); err != nil {
		c.fail(KindSendFailed, "failed to send upgrade request: "+err.Error())
	}
}

// OnDisconnected implements Handler. Repeats are no-ops once idle.
func (c *Client) OnDisconnected() {
	handshaked := c.state == StateHandshaked

	c.state = StateIdle
	c.failed = false
	c.key = ""
	c.req.reset()
	c.parser.reset()
	c.enc = frameEncoder{}

	if handshaked && c.opts.OnWSDisconnected != nil {
		c.opts.OnWSDisconnected()
	}
}

// OnReceived implements Handler. Until the handshake completes, bytes feed
// the upgrade response parser; afterwards they flow to OnFrameData.
func (c *Client) OnReceived(p []byte) {
	// A failed attempt is terminal: anything arriving before the
	// disconnect unwinds (a response body, stray frames) is dropped.
	if c.failed {
		return
	}

	switch c.state {
	case StateHandshaked:
		if c.opts.OnFrameData != nil {
			c.opts.OnFrameData(p)
		}
	case StateHandshakePending:
		resp, rest, err := c.parser.feed(p)
		if err != nil {
			c.fail(KindInvalidResponse, "invalid WebSocket handshake response: "+err.Error())
			return
		}
		if resp != nil {
			c.onResponseHeader(resp, rest)
		}
	}
}

// onResponseHeader runs the validation pass and flips the handshake state.
func (c *Client) onResponseHeader(resp *Response, rest []byte) {
	if c.state == StateHandshaked {
		return
	}

	if herr := verifyUpgradeResponse(resp, c.key); herr != nil {
		c.fail(herr.Kind, herr.Error())
		return
	}

	c.state = StateHandshaked
	if _, err := io.ReadFull(c.opts.Entropy, c.enc.maskKey[:]); err != nil {
		c.state = StateHandshakePending
		c.enc = frameEncoder{}
		c.fail(KindInvalidResponse, "failed to source mask key: "+err.Error())
		return
	}
	c.parser.reset()

	if c.opts.OnWSConnected != nil {
		c.opts.OnWSConnected(resp)
	}
	if len(rest) > 0 && c.opts.OnFrameData != nil {
		c.opts.OnFrameData(rest)
	}
}

// fail converts a handshake failure into the OnError callback plus an
// asynchronous disconnect, and latches the attempt as failed so it is
// reported exactly once. Never a returned error: failures do not cross
// the Handler boundary.
func (c *Client) fail(kind ErrorKind, msg string) {
	c.failed = true
	c.parser.reset()

	if c.opts.OnError != nil {
		c.opts.OnError(kind, msg)
	}
	c.tr.DisconnectAsync()
}

// send writes raw bytes in the mode fixed at connect time.
func (c *Client) send(p []byte) error {
	if c.syncSend {
		return c.tr.Send(p)
	}
	return c.tr.SendAsync(p)
}

// SendText sends p as a single unfragmented text frame.
func (c *Client) SendText(p []byte) error {
	return c.sendFrame(byte(opText)|flagFin, p)
}

// SendBinary sends p as a single unfragmented binary frame.
func (c *Client) SendBinary(p []byte) error {
	return c.sendFrame(byte(opBinary)|flagFin, p)
}

// SendPing sends a ping frame with optional payload p.
func (c *Client) SendPing(p []byte) error {
	return c.sendFrame(byte(opPing)|flagFin, p)
}

// SendPong sends a pong frame with optional payload p.
func (c *Client) SendPong(p []byte) error {
	return c.sendFrame(byte(opPong)|flagFin, p)
}

// SendClose sends a close frame carrying status and reason.
// See https://tools.ietf.org/html/rfc6455#section-5.5.1.
func (c *Client) SendClose(status int, reason string) error {
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(status))
	copy(p[2:], reason)
	return c.sendFrame(byte(opClose)|flagFin, p)
}

func (c *Client) sendFrame(first byte, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to send frame")

	if c.state != StateHandshaked {
		return ErrNotHandshaked
	}
	return c.send(c.enc.encode(first, p))
}
