// Package wspb provides a helper for sending protobuf messages.
package wspb

import (
	"github.com/golang/protobuf/proto"
	"golang.org/x/xerrors"

	"github.com/jai-jae/wsclient"
)

// Write sends m as a single binary frame on c.
func Write(c *wsclient.Client, m proto.Message) error {
	err := write(c, m)
	if err != nil {
		return xerrors.Errorf("failed to write protobuf: %w", err)
	}
	return nil
}

func write(c *wsclient.Client, m proto.Message) error {
	b, err := proto.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal protobuf: %w", err)
	}
	return c.SendBinary(b)
}
