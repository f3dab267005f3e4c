package wsclient

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Response is the parsed upgrade response: status line plus headers in the
// order the server sent them. It is transient, consumed by one validation
// pass and then cleared.
type Response struct {
	StatusCode int
	Reason     string
	Headers    []Header
}

// Get returns the value of the first header with the given key, or "".
func (r *Response) Get(key string) string {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Key, key) {
			return r.Headers[i].Value
		}
	}
	return ""
}

var crlfcrlf = []byte("\r\n\r\n")

// responseParser accumulates inbound bytes until a full HTTP header block
// has arrived and then parses it, preserving header order. The generic
// net/http machinery is no use here: it canonicalizes and reorders headers,
// and validation is order-sensitive.
type responseParser struct {
	buf []byte
}

func (p *responseParser) reset() {
	p.buf = nil
}

// feed appends data and attempts to parse. It returns a nil Response while
// the header block is incomplete. On success, rest holds any bytes that
// followed the header block, e.g. an early server frame sent in the same
// segment.
func (p *responseParser) feed(data []byte) (resp *Response, rest []byte, err error) {
	p.buf = append(p.buf, data...)

	end := bytes.Index(p.buf, crlfcrlf)
	if end < 0 {
		return nil, nil, nil
	}

	head := string(p.buf[:end])
	rest = p.buf[end+len(crlfcrlf):]

	resp, err = parseResponseHead(head)
	if err != nil {
		return nil, nil, err
	}
	return resp, rest, nil
}

func parseResponseHead(head string) (*Response, error) {
	lines := strings.Split(head, "\r\n")

	status := strings.SplitN(lines[0], " ", 3)
	if len(status) < 2 || !strings.HasPrefix(status[0], "HTTP/") {
		return nil, xerrors.Errorf("malformed status line: %q", lines[0])
	}
	code, err := strconv.Atoi(status[1])
	if err != nil {
		return nil, xerrors.Errorf("malformed status code: %q", status[1])
	}

	resp := &Response{StatusCode: code}
	if len(status) == 3 {
		resp.Reason = status[2]
	}

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return nil, xerrors.Errorf("malformed header line: %q", line)
		}
		resp.Headers = append(resp.Headers, Header{
			Key:   key,
			Value: strings.Trim(value, " \t"),
		})
	}
	return resp, nil
}
