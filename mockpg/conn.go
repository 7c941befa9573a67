package mockpg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/harness"
)

// Conn is the accepted server side of a client connection. Every read and
// write applies a deadline derived from the test's TimeoutBudget, so no
// scripted handler can block unboundedly.
type Conn struct {
	raw    net.Conn
	budget *harness.TimeoutBudget
	logger framework.Logger
}

func newConn(raw net.Conn, budget *harness.TimeoutBudget, logger framework.Logger) *Conn {
	return &Conn{raw: raw, budget: budget, logger: logger}
}

// ReadStartupMessage reads one length-prefixed startup-phase message: either
// a StartupPacket or an SSLRequest.
func (c *Conn) ReadStartupMessage() (Message, error) {
	header := make([]byte, 4)
	if err := c.readFull(header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)
	if length < 8 {
		return nil, framingErrorf("startup message declares length %d, below the 8-byte minimum", length)
	}
	body := make([]byte, length-4)
	if err := c.readFull(body); err != nil {
		return nil, err
	}
	return DecodeStartupMessage(body)
}

// ReadMessage reads one tagged post-handshake message.
func (c *Conn) ReadMessage() (Message, error) {
	header := make([]byte, 5)
	if err := c.readFull(header); err != nil {
		return nil, err
	}
	tag := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length < 4 {
		return nil, framingErrorf("message %q declares length %d, below the 4-byte minimum", tag, length)
	}
	payload := make([]byte, length-4)
	if err := c.readFull(payload); err != nil {
		return nil, err
	}
	return DecodeMessage(tag, payload)
}

// Send writes the encoded form of each message, in order.
func (c *Conn) Send(msgs ...Message) error {
	for _, m := range msgs {
		if err := c.write(m.Encode()); err != nil {
			return err
		}
	}
	return nil
}

// SendRaw writes arbitrary bytes, for scripts that deliberately violate the
// protocol.
func (c *Conn) SendRaw(data []byte) error {
	return c.write(data)
}

// ExpectClose verifies that the client closes the connection without sending
// any further bytes.
func (c *Conn) ExpectClose() error {
	if err := c.setDeadline(); err != nil {
		return err
	}
	buf := make([]byte, 1)
	n, err := c.raw.Read(buf)
	if n > 0 {
		return fmt.Errorf("client sent unexpected data %q", buf[:n])
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return c.wrapTimeout(err, "waiting for the client to close")
}

func (c *Conn) readFull(buf []byte) error {
	if err := c.setDeadline(); err != nil {
		return err
	}
	if _, err := io.ReadFull(c.raw, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return framingErrorf("connection closed mid-message (%d bytes expected)", len(buf))
		}
		return c.wrapTimeout(err, "reading from the client")
	}
	return nil
}

func (c *Conn) write(data []byte) error {
	if err := c.setDeadline(); err != nil {
		return err
	}
	if _, err := c.raw.Write(data); err != nil {
		return c.wrapTimeout(err, "writing to the client")
	}
	return nil
}

func (c *Conn) setDeadline() error {
	return c.raw.SetDeadline(time.Now().Add(c.budget.Remaining()))
}

func (c *Conn) wrapTimeout(err error, operation string) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &harness.TimeoutError{Operation: operation}
	}
	return err
}
