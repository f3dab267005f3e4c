// Package wsnet provides a net.Conn backed implementation of
// wsclient.Transport.
//
// The transport owns the socket: it dials with optional TLS, runs a read
// loop that delivers OnConnected, OnReceived and OnDisconnected from a
// single goroutine, and supports both blocking and queued sends.
package wsnet

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"github.com/jai-jae/wsclient"
	"github.com/jai-jae/wsclient/internal/errd"
)

// ErrNotConnected is returned by sends on a transport with no established
// connection.
var ErrNotConnected = xerrors.New("wsnet: not connected")

const (
	defaultReadBufferSize = 4096
	defaultSendQueueSize  = 64
)

// Options configures a Transport. The zero value is usable.
type Options struct {
	// TLS enables a TLS dial when non-nil.
	TLS *tls.Config

	// DialTimeout bounds connection establishment. Zero means no bound.
	DialTimeout time.Duration

	// ReadBufferSize is the size of the read loop's buffer, default 4096.
	ReadBufferSize int

	// SendQueueSize is the capacity of the asynchronous send queue,
	// default 64. SendAsync fails once the queue is full rather than
	// block the caller.
	SendQueueSize int

	// SendLimiter, when non-nil, paces outbound writes. One event is
	// consumed per write.
	SendLimiter *rate.Limiter

	// Logger receives debug level connection lifecycle logs. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Transport is a wsclient.Transport over a TCP or TLS connection. A single
// Transport can be connected and disconnected repeatedly; every connection
// gets a fresh uuid identifier.
type Transport struct {
	addr string
	opts Options
	log  *slog.Logger

	h wsclient.Handler

	mu    sync.Mutex
	conn  net.Conn
	id    uuid.UUID
	sendq chan []byte
	done  chan struct{}
}

var _ wsclient.Transport = (*Transport)(nil)
var _ wsclient.Addresser = (*Transport)(nil)

// New creates a Transport that dials addr (host:port).
func New(addr string, opts Options) *Transport {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaultSendQueueSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Transport{
		addr: addr,
		opts: opts,
		log:  log,
	}
}

// SetLogger replaces the transport's logger.
func (t *Transport) SetLogger(log *slog.Logger) {
	t.log = log
}

// Bind implements wsclient.Transport.
func (t *Transport) Bind(h wsclient.Handler) {
	t.h = h
}

// Addr implements wsclient.Addresser.
func (t *Transport) Addr() string {
	return t.addr
}

// ID implements wsclient.Transport. The identifier is regenerated on every
// successful Connect.
func (t *Transport) ID() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// Connect implements wsclient.Transport. On success the handler's
// OnConnected fires from the read loop goroutine.
func (t *Transport) Connect() (err error) {
	defer errd.Wrap(&err, "failed to connect to %q", t.addr)

	if t.h == nil {
		return xerrors.New("no handler bound")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return xerrors.New("already connected")
	}

	conn, err := t.dial()
	if err != nil {
		return err
	}

	t.conn = conn
	t.id = uuid.New()
	t.sendq = make(chan []byte, t.opts.SendQueueSize)
	t.done = make(chan struct{})

	t.log.Debug("wsnet: connected", "addr", t.addr, "id", t.id)

	go t.writeLoop(conn, t.sendq, t.done)
	go t.readLoop(conn)
	return nil
}

// ConnectAsync implements wsclient.Transport. A failed dial surfaces as an
// OnDisconnected to the bound handler, so a caller waiting on the attempt
// is not left hanging.
func (t *Transport) ConnectAsync() error {
	go func() {
		if err := t.Connect(); err != nil {
			t.log.Debug("wsnet: async connect failed", "addr", t.addr, "err", err)
			if t.h != nil {
				t.h.OnDisconnected()
			}
		}
	}()
	return nil
}

func (t *Transport) dial() (net.Conn, error) {
	d := &net.Dialer{Timeout: t.opts.DialTimeout}
	if t.opts.TLS != nil {
		return tls.DialWithDialer(d, "tcp", t.addr, t.opts.TLS)
	}
	return d.Dial("tcp", t.addr)
}

// Send implements wsclient.Transport, blocking until the write is accepted
// by the kernel.
func (t *Transport) Send(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if t.opts.SendLimiter != nil {
		if err := t.opts.SendLimiter.Wait(context.Background()); err != nil {
			return xerrors.Errorf("failed to wait for send limiter: %w", err)
		}
	}
	if _, err := conn.Write(p); err != nil {
		return xerrors.Errorf("failed to write: %w", err)
	}
	return nil
}

// SendAsync implements wsclient.Transport. The bytes are copied before
// queueing, so the caller may reuse p immediately.
func (t *Transport) SendAsync(p []byte) error {
	t.mu.Lock()
	sendq, done := t.sendq, t.done
	t.mu.Unlock()
	if sendq == nil {
		return ErrNotConnected
	}

	q := make([]byte, len(p))
	copy(q, p)

	select {
	case sendq <- q:
		return nil
	case <-done:
		return ErrNotConnected
	default:
		return xerrors.New("wsnet: send queue full")
	}
}

// DisconnectAsync implements wsclient.Transport. The handler's
// OnDisconnected fires from the read loop once the socket unwinds; calling
// this repeatedly or while idle is harmless.
func (t *Transport) DisconnectAsync() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return nil
}

func (t *Transport) readLoop(conn net.Conn) {
	t.h.OnConnected()

	buf := make([]byte, t.opts.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			t.h.OnReceived(buf[:n])
		}
		if err != nil {
			t.teardown(conn, err)
			return
		}
	}
}

// teardown runs exactly once per connection, from the read loop, so
// OnDisconnected is delivered once and from the callback goroutine.
func (t *Transport) teardown(conn net.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.sendq = nil
	close(t.done)
	t.mu.Unlock()

	conn.Close()
	t.log.Debug("wsnet: disconnected", "addr", t.addr, "err", err)
	t.h.OnDisconnected()
}

func (t *Transport) writeLoop(conn net.Conn, sendq chan []byte, done chan struct{}) {
	for {
		select {
		case p := <-sendq:
			if t.opts.SendLimiter != nil {
				if err := t.opts.SendLimiter.Wait(context.Background()); err != nil {
					conn.Close()
					return
				}
			}
			if _, err := conn.Write(p); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
