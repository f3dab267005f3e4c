package wsclient

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"
)

var keyGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

func secWebSocketAccept(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write(keyGUID)

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildUpgradeRequest fills req with the headers every upgrade needs.
// The application gets to mutate the request afterwards in OnWSConnecting.
func buildUpgradeRequest(req *Request, secWebSocketKey string) {
	req.Set("Upgrade", "websocket")
	req.Set("Connection", "Upgrade")
	req.Set("Sec-WebSocket-Key", secWebSocketKey)
	req.Set("Sec-WebSocket-Version", "13")
}

// verifyUpgradeResponse validates resp against RFC 6455 section 1.3 in a
// single pass over the headers as received. The first disqualifying header
// aborts the pass, so which error fires is decided purely by header order.
// A 101 that survives the pass with any required header missing falls back
// to the generic KindInvalidResponse.
//
// Token comparison is case-insensitive per RFC 6455 section 4.1.
func verifyUpgradeResponse(resp *Response, secWebSocketKey string) *HandshakeError {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return handshakeErrorf(KindInvalidStatus,
			"invalid WebSocket handshake response status: %d", resp.StatusCode)
	}

	var connectionOK, upgradeOK, acceptOK bool
	for _, h := range resp.Headers {
		switch {
		case strings.EqualFold(h.Key, "Connection"):
			if !strings.EqualFold(h.Value, "Upgrade") {
				return handshakeErrorf(KindInvalidConnectionHeader,
					"invalid WebSocket handshake response: Connection header value must be %q but got %q", "Upgrade", h.Value)
			}
			connectionOK = true

		case strings.EqualFold(h.Key, "Upgrade"):
			if !strings.EqualFold(h.Value, "websocket") {
				return handshakeErrorf(KindInvalidUpgradeHeader,
					"invalid WebSocket handshake response: Upgrade header value must be %q but got %q", "websocket", h.Value)
			}
			upgradeOK = true

		case strings.EqualFold(h.Key, "Sec-WebSocket-Accept"):
			if !acceptMatches(h.Value, secWebSocketKey) {
				return handshakeErrorf(KindAcceptMismatch,
					"invalid WebSocket handshake response: Sec-WebSocket-Accept value validation failed")
			}
			acceptOK = true
		}
	}

	if !connectionOK || !upgradeOK || !acceptOK {
		return handshakeErrorf(KindInvalidResponse, "invalid WebSocket handshake response")
	}
	return nil
}

// acceptMatches reports whether value is the base64 of exactly the SHA-1
// digest the key demands. Any decode failure or length mismatch fails
// closed.
func acceptMatches(value, secWebSocketKey string) bool {
	got, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(got) != sha1.Size {
		return false
	}

	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write(keyGUID)
	return bytes.Equal(got, h.Sum(nil))
}
