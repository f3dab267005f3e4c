package wsclient

import (
	"golang.org/x/xerrors"
)

// ErrNotHandshaked is returned by the send helpers when the connection has
// not completed the WebSocket handshake.
var ErrNotHandshaked = xerrors.New("wsclient: connection is not handshaked")

// ErrorKind identifies why a handshake attempt failed. It is passed to
// Options.OnError alongside a human readable message.
type ErrorKind int

const (
	// KindInvalidStatus means the response status was not 101.
	KindInvalidStatus ErrorKind = iota + 1
	// KindInvalidConnectionHeader means the Connection header did not
	// carry "Upgrade".
	KindInvalidConnectionHeader
	// KindInvalidUpgradeHeader means the Upgrade header did not carry
	// "websocket".
	KindInvalidUpgradeHeader
	// KindAcceptMismatch means the Sec-WebSocket-Accept value did not
	// match the expected SHA-1 digest.
	KindAcceptMismatch
	// KindInvalidResponse is the fallback for a response that passed no
	// individual header check but is still not a valid upgrade, e.g. a
	// 101 with a required header missing entirely.
	KindInvalidResponse
	// KindSendFailed means the transport refused the upgrade request
	// itself, before any response could arrive.
	KindSendFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidStatus:
		return "InvalidStatus"
	case KindInvalidConnectionHeader:
		return "InvalidConnectionHeader"
	case KindInvalidUpgradeHeader:
		return "InvalidUpgradeHeader"
	case KindAcceptMismatch:
		return "AcceptMismatch"
	case KindInvalidResponse:
		return "InvalidResponse"
	case KindSendFailed:
		return "SendFailed"
	}
	return "Unknown"
}

// HandshakeError is a failed handshake validation. It never crosses the
// Handler boundary as a return value; the Client converts it into an
// OnError callback plus an asynchronous disconnect.
type HandshakeError struct {
	Kind ErrorKind
	msg  string
}

func (e *HandshakeError) Error() string {
	return e.msg
}

func handshakeErrorf(kind ErrorKind, format string, v ...interface{}) *HandshakeError {
	return &HandshakeError{Kind: kind, msg: xerrors.Errorf(format, v...).Error()}
}
