package wsclient

import (
	"strings"
)

// Header is a single (key, value) pair. Request and Response keep their
// headers as ordered slices because handshake validation is defined over
// headers in the order the peer sent them.
type Header struct {
	Key   string
	Value string
}

// Request is the upgrade request owned by the Client. The negotiator fills
// in the Upgrade-related headers and the application mutates it in
// OnWSConnecting before it is sent. The body is always empty.
type Request struct {
	// Method defaults to GET.
	Method string
	// Target is the request target, defaulting to "/".
	Target string

	headers []Header
}

// Set replaces the value of the first header with the given key, appending
// a new header if none exists. Key matching is case-insensitive.
func (r *Request) Set(key, value string) {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Key, key) {
			r.headers[i].Value = value
			return
		}
	}
	r.headers = append(r.headers, Header{Key: key, Value: value})
}

// Get returns the value of the first header with the given key, or "".
func (r *Request) Get(key string) string {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Key, key) {
			return r.headers[i].Value
		}
	}
	return ""
}

// Headers returns the headers in the order they will be written.
func (r *Request) Headers() []Header {
	return r.headers
}

func (r *Request) reset() {
	*r = Request{}
}

// bytes serializes the request as an HTTP/1.1 message with an empty body.
// Serialization is by hand so the header order the application set is the
// order on the wire.
func (r *Request) bytes() []byte {
	method := r.Method
	if method == "" {
		method = "GET"
	}
	target := r.Target
	if target == "" {
		target = "/"
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(target)
	b.WriteString(" HTTP/1.1\r\n")
	for _, h := range r.headers {
		b.WriteString(h.Key)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
