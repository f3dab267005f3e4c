// Package wsjson provides a helper for sending JSON messages.
package wsjson

import (
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/jai-jae/wsclient"
)

// Write sends v as a single JSON text frame on c.
func Write(c *wsclient.Client, v interface{}) error {
	err := write(c, v)
	if err != nil {
		return xerrors.Errorf("failed to write json: %w", err)
	}
	return nil
}

func write(c *wsclient.Client, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("failed to encode json: %w", err)
	}
	return c.SendText(b)
}
