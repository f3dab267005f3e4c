// Package wsclient implements the client side of the WebSocket protocol
// over a caller-supplied byte-stream transport.
//
// The package covers the HTTP-Upgrade handshake defined in RFC 6455 section
// 1.3 and the encoding of outbound masked frames defined in section 5.2.
// Connection establishment, socket I/O and inbound frame decoding stay with
// the transport and the application; the Client consumes them through the
// Transport interface and the hooks on Options.
//
// The wsnet subpackage provides a ready made net.Conn transport:
//
//	tr := wsnet.New("example.com:80", wsnet.Options{})
//	c := wsclient.New(tr, wsclient.Options{
//		OnWSConnected: func(resp *wsclient.Response) {
//			// Handshake complete, sends are legal from here on.
//		},
//	})
//	err := c.Connect()
package wsclient
