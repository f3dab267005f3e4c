package wsclient

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/jai-jae/wsclient/internal/test/assert"
	"github.com/jai-jae/wsclient/internal/util"
)

// fakeTransport drives the Handler synchronously from the test goroutine,
// which satisfies the single-callback-goroutine model.
type fakeTransport struct {
	h  Handler
	id uuid.UUID

	// deferDisconnect makes DisconnectAsync behave like a real socket:
	// the OnDisconnected notification does not arrive until the test
	// delivers it.
	deferDisconnect bool
	// sendErr makes every send fail.
	sendErr error

	sent        [][]byte
	asyncSent   [][]byte
	disconnects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (t *fakeTransport) Bind(h Handler) { t.h = h }

func (t *fakeTransport) Connect() error {
	t.h.OnConnected()
	return nil
}

func (t *fakeTransport) ConnectAsync() error {
	t.h.OnConnected()
	return nil
}

func (t *fakeTransport) Send(p []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, append([]byte(nil), p...))
	return nil
}

func (t *fakeTransport) SendAsync(p []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.asyncSent = append(t.asyncSent, append([]byte(nil), p...))
	return nil
}

func (t *fakeTransport) DisconnectAsync() error {
	t.disconnects++
	if !t.deferDisconnect {
		t.h.OnDisconnected()
	}
	return nil
}

func (t *fakeTransport) ID() uuid.UUID { return t.id }

// upgradeResponseFor builds the response a conformant server would send
// for the given transport's connection.
func upgradeResponseFor(tr *fakeTransport) []byte {
	key := base64.StdEncoding.EncodeToString(tr.id[:])
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + secWebSocketAccept(key) + "\r\n\r\n")
}

type callbackLog struct {
	connecting   int
	connected    int
	disconnected int
	errKinds     []ErrorKind
	frameData    [][]byte
}

func newClientPair(t *testing.T, opts Options) (*Client, *fakeTransport, *callbackLog) {
	t.Helper()

	tr := newFakeTransport()
	log := &callbackLog{}

	userConnecting := opts.OnWSConnecting
	opts.OnWSConnecting = func(req *Request) {
		log.connecting++
		if userConnecting != nil {
			userConnecting(req)
		}
	}
	opts.OnWSConnected = func(resp *Response) { log.connected++ }
	opts.OnWSDisconnected = func() { log.disconnected++ }
	opts.OnError = func(kind ErrorKind, msg string) { log.errKinds = append(log.errKinds, kind) }
	opts.OnFrameData = func(p []byte) { log.frameData = append(log.frameData, append([]byte(nil), p...)) }

	return New(tr, opts), tr, log
}

func TestClientHandshake(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	assert.Success(t, c.Connect())
	assert.Equal(t, "state after connect", StateHandshakePending, c.State())
	assert.Equal(t, "connecting callbacks", 1, log.connecting)

	// The upgrade request went out synchronously and carries the key
	// derived from the connection id.
	assert.Equal(t, "sync sends", 1, len(tr.sent))
	assert.Equal(t, "async sends", 0, len(tr.asyncSent))
	key := base64.StdEncoding.EncodeToString(tr.id[:])
	assert.Contains(t, string(tr.sent[0]), "Sec-WebSocket-Key: "+key+"\r\n")
	assert.Contains(t, string(tr.sent[0]), "Upgrade: websocket\r\n")

	tr.h.OnReceived(upgradeResponseFor(tr))
	assert.Equal(t, "state", StateHandshaked, c.State())
	assert.Equal(t, "connected callbacks", 1, log.connected)
	assert.Equal(t, "errors", 0, len(log.errKinds))

	tr.h.OnDisconnected()
	assert.Equal(t, "state", StateIdle, c.State())
	assert.Equal(t, "disconnected callbacks", 1, log.disconnected)
}

func TestClientHandshakeSplitResponse(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	assert.Success(t, c.Connect())

	resp := upgradeResponseFor(tr)
	for _, b := range resp {
		tr.h.OnReceived([]byte{b})
	}
	assert.Equal(t, "state", StateHandshaked, c.State())
	assert.Equal(t, "connected callbacks", 1, log.connected)
}

func TestClientHandshakeFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		resp string
		kind ErrorKind
	}{
		{
			name: "status200",
			resp: "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n",
			kind: KindInvalidStatus,
		},
		{
			name: "badConnection",
			resp: "HTTP/1.1 101 Switching Protocols\r\nConnection: close\r\n\r\n",
			kind: KindInvalidConnectionHeader,
		},
		{
			name: "badUpgrade",
			resp: "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n",
			kind: KindInvalidUpgradeHeader,
		},
		{
			name: "badAccept",
			resp: "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: websocket\r\nSec-WebSocket-Accept: bogus\r\n\r\n",
			kind: KindAcceptMismatch,
		},
		{
			name: "missingAccept",
			resp: "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n",
			kind: KindInvalidResponse,
		},
		{
			name: "malformed",
			resp: "not http at all\r\n\r\n",
			kind: KindInvalidResponse,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, tr, log := newClientPair(t, Options{})
			assert.Success(t, c.Connect())

			tr.h.OnReceived([]byte(tc.resp))

			assert.Equal(t, "error kinds", []ErrorKind{tc.kind}, log.errKinds)
			assert.Equal(t, "disconnects", 1, tr.disconnects)
			assert.Equal(t, "connected callbacks", 0, log.connected)
			// The failed attempt never handshaked, so no disconnected
			// callback either.
			assert.Equal(t, "disconnected callbacks", 0, log.disconnected)
			assert.Equal(t, "state", StateIdle, c.State())
		})
	}
}

func TestClientFailureIsTerminal(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	tr.deferDisconnect = true
	assert.Success(t, c.Connect())

	// A rejected response whose body lands in a later segment, before the
	// disconnect unwinds. The body must not re-run validation and re-fire
	// the error.
	tr.h.OnReceived([]byte("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\n"))
	tr.h.OnReceived([]byte("body"))

	assert.Equal(t, "error kinds", []ErrorKind{KindInvalidStatus}, log.errKinds)
	assert.Equal(t, "disconnects", 1, tr.disconnects)

	// Once the teardown lands, a fresh attempt starts clean.
	tr.h.OnDisconnected()
	assert.Equal(t, "state", StateIdle, c.State())

	tr.deferDisconnect = false
	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))
	assert.Equal(t, "connected callbacks", 1, log.connected)
	assert.Equal(t, "error kinds after reconnect", []ErrorKind{KindInvalidStatus}, log.errKinds)
}

func TestClientUpgradeSendFailure(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	tr.sendErr = xerrors.New("broken pipe")

	assert.Success(t, c.Connect())
	assert.Equal(t, "error kinds", []ErrorKind{KindSendFailed}, log.errKinds)
	assert.Equal(t, "disconnects", 1, tr.disconnects)
	assert.Equal(t, "state", StateIdle, c.State())
	assert.Equal(t, "connected callbacks", 0, log.connected)
}

func TestClientDisconnectedAtMostOnce(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))
	assert.Equal(t, "state", StateHandshaked, c.State())

	tr.h.OnDisconnected()
	tr.h.OnDisconnected()
	tr.h.OnDisconnected()
	assert.Equal(t, "disconnected callbacks", 1, log.disconnected)
}

func TestClientDisconnectMidHandshake(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	assert.Success(t, c.Connect())
	assert.Equal(t, "state", StateHandshakePending, c.State())

	assert.Success(t, c.DisconnectAsync())
	assert.Equal(t, "state", StateIdle, c.State())
	assert.Equal(t, "disconnected callbacks", 0, log.disconnected)

	// A late response must not connect a torn down attempt.
	tr.h.OnReceived(upgradeResponseFor(tr))
	assert.Equal(t, "connected callbacks", 0, log.connected)
	assert.Equal(t, "state", StateIdle, c.State())
}

func TestClientReconnectStartsClean(t *testing.T) {
	t.Parallel()

	var headerCounts []int
	c, tr, log := newClientPair(t, Options{
		OnWSConnecting: func(req *Request) {
			headerCounts = append(headerCounts, len(req.Headers()))
			req.Set("Cookie", "session=1")
		},
	})

	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))
	tr.h.OnDisconnected()

	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))

	assert.Equal(t, "connected callbacks", 2, log.connected)
	// The Cookie set on the first attempt must not leak into the second:
	// both attempts see only the negotiator's own headers.
	assert.Equal(t, "header counts", []int{4, 4}, headerCounts)
}

func TestClientSeededMaskKey(t *testing.T) {
	t.Parallel()

	seed := []byte{0xde, 0xad, 0xbe, 0xef}
	c, tr, _ := newClientPair(t, Options{
		Entropy: bytes.NewReader(seed),
	})

	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))

	assert.Success(t, c.SendText([]byte("hi")))
	assert.Equal(t, "sends", 2, len(tr.sent))

	f := tr.sent[1]
	assert.Equal(t, "first byte", byte(opText)|byte(flagFin), f[0])
	assert.Equal(t, "length byte", byte(2)|byte(maskBit), f[1])
	assert.Equal(t, "mask key", seed, f[2:6])
	assert.Equal(t, "masked payload", []byte{'h' ^ 0xde, 'i' ^ 0xad}, f[6:])
}

func TestClientEntropyFailure(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{
		Entropy: util.ReaderFunc(func(p []byte) (int, error) {
			return 0, bytes.ErrTooLarge
		}),
	})

	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))

	assert.Equal(t, "connected callbacks", 0, log.connected)
	assert.Equal(t, "error kinds", []ErrorKind{KindInvalidResponse}, log.errKinds)
	assert.Equal(t, "state", StateIdle, c.State())
}

func TestClientSendBeforeHandshake(t *testing.T) {
	t.Parallel()

	c, tr, _ := newClientPair(t, Options{})
	assert.ErrorIs(t, ErrNotHandshaked, c.SendText([]byte("early")))

	assert.Success(t, c.Connect())
	assert.ErrorIs(t, ErrNotHandshaked, c.SendBinary([]byte("still early")))
	assert.Equal(t, "sends", 1, len(tr.sent)) // only the upgrade request
}

func TestClientAsyncSendMode(t *testing.T) {
	t.Parallel()

	c, tr, _ := newClientPair(t, Options{})
	assert.Success(t, c.ConnectAsync())

	// The mode fixed at connect time covers the upgrade request and every
	// frame after it.
	assert.Equal(t, "async sends", 1, len(tr.asyncSent))
	assert.Equal(t, "sync sends", 0, len(tr.sent))

	tr.h.OnReceived(upgradeResponseFor(tr))
	assert.Success(t, c.SendPing(nil))
	assert.Equal(t, "async sends", 2, len(tr.asyncSent))
	assert.Equal(t, "sync sends", 0, len(tr.sent))
}

func TestClientEarlyFrameData(t *testing.T) {
	t.Parallel()

	c, tr, log := newClientPair(t, Options{})
	assert.Success(t, c.Connect())

	// Server frame bytes arriving in the same segment as the response
	// header must reach the frame sink, in order, after OnWSConnected.
	resp := append(upgradeResponseFor(tr), 0x81, 0x02, 'h', 'i')
	tr.h.OnReceived(resp)
	tr.h.OnReceived([]byte{0x89, 0x00})

	assert.Equal(t, "connected callbacks", 1, log.connected)
	assert.Equal(t, "frame data", [][]byte{{0x81, 0x02, 'h', 'i'}, {0x89, 0x00}}, log.frameData)
	assert.Equal(t, "state", StateHandshaked, c.State())
}

func TestClientSendClose(t *testing.T) {
	t.Parallel()

	c, tr, _ := newClientPair(t, Options{
		Entropy: bytes.NewReader([]byte{0, 0, 0, 0}),
	})
	assert.Success(t, c.Connect())
	tr.h.OnReceived(upgradeResponseFor(tr))

	assert.Success(t, c.SendClose(1000, "bye"))
	f := tr.sent[len(tr.sent)-1]
	assert.Equal(t, "first byte", byte(opClose)|byte(flagFin), f[0])
	// Zero mask key leaves the payload legible: status 1000 big-endian
	// then the reason.
	assert.Equal(t, "payload", []byte{0x03, 0xe8, 'b', 'y', 'e'}, f[6:])
}
