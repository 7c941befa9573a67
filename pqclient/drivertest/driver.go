// Package drivertest provides a minimal scripted implementation of the
// pqclient driver boundary that speaks just enough of the wire protocol to
// exercise the harness end to end in its own tests: SSL negotiation, the v3
// startup exchange, one simple query at a time, and Terminate on close. It is
// a test double, not a client library.
package drivertest

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jchampio/libpq-test-harness/mockpg"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

const connStatusBad pqclient.ConnStatus = 1

const defaultConnectTimeout = 30 * time.Second

// The settings this driver understands. Anything else fails the connection
// attempt, mirroring the native library's behavior.
var knownOptions = map[string]bool{
	"host":            true,
	"hostaddr":        true,
	"port":            true,
	"dbname":          true,
	"user":            true,
	"connect_timeout": true,
	"sslmode":         true,
	"sslrootcert":     true,
}

// Driver implements pqclient.Driver over real sockets.
type Driver struct{}

// New returns a scripted wire-speaking driver.
func New() pqclient.Driver { return Driver{} }

func (Driver) ConnectDB(conninfo string) pqclient.RawConn {
	conn := &Conn{status: connStatusBad}

	opts, err := ParseConnString(conninfo)
	if err != nil {
		conn.errMsg = err.Error()
		return conn
	}
	for k := range opts {
		if !knownOptions[k] {
			conn.errMsg = fmt.Sprintf("invalid connection option %q", k)
			return conn
		}
	}

	if err := conn.connect(opts); err != nil {
		conn.errMsg = err.Error()
		if conn.sock != nil {
			_ = conn.sock.Close()
			conn.sock = nil
		}
		return conn
	}
	conn.status = pqclient.ConnStatusOK
	return conn
}

// Conn is the scripted driver's connection handle.
type Conn struct {
	sock    net.Conn
	r       *bufio.Reader
	timeout time.Duration
	status  pqclient.ConnStatus
	errMsg  string
	params  map[string]string
}

func (c *Conn) connect(opts map[string]string) error {
	c.timeout = defaultConnectTimeout
	if v, ok := opts["connect_timeout"]; ok {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			return fmt.Errorf("invalid connect_timeout %q", v)
		}
		c.timeout = time.Duration(seconds) * time.Second
	}

	port := 5432
	if v, ok := opts["port"]; ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		port = p
	}

	network, address := "tcp", ""
	switch {
	case opts["hostaddr"] != "":
		address = net.JoinHostPort(opts["hostaddr"], strconv.Itoa(port))
	case filepath.IsAbs(opts["host"]):
		network = "unix"
		address = filepath.Join(opts["host"], fmt.Sprintf(".s.PGSQL.%d", port))
	case opts["host"] != "":
		address = net.JoinHostPort(opts["host"], strconv.Itoa(port))
	default:
		return errors.New("no host or hostaddr was provided")
	}

	sock, err := net.DialTimeout(network, address, c.timeout)
	if err != nil {
		return err
	}
	c.sock = sock

	switch opts["sslmode"] {
	case "", "disable":
		// plaintext
	case "require", "verify-ca", "verify-full":
		if err := c.negotiateTLS(opts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported sslmode %q", opts["sslmode"])
	}
	c.r = bufio.NewReader(c.sock)

	if err := c.startup(opts); err != nil {
		return err
	}
	return nil
}

func (c *Conn) negotiateTLS(opts map[string]string) error {
	if err := c.write(mockpg.SSLRequest{}.Encode()); err != nil {
		return err
	}

	answer := make([]byte, 1)
	if err := c.setDeadline(); err != nil {
		return err
	}
	if _, err := io.ReadFull(c.sock, answer); err != nil {
		return err
	}
	switch answer[0] {
	case 'N':
		return errors.New("server does not support SSL, but SSL was required")
	case 'S':
		// proceed with the handshake below
	default:
		return fmt.Errorf("received invalid response to SSL negotiation: %q", answer[0])
	}

	config := &tls.Config{
		ServerName: opts["host"],
		MinVersion: tls.VersionTLS12,
	}
	if path := opts["sslrootcert"]; path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read root certificate file %q: %w", path, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("could not parse root certificate file %q", path)
		}
		config.RootCAs = pool
	}
	if opts["sslmode"] != "verify-full" {
		config.InsecureSkipVerify = true
	}

	tlsConn := tls.Client(c.sock, config)
	if err := tlsConn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("SSL error: %w", err)
	}
	c.sock = tlsConn
	return nil
}

func (c *Conn) startup(opts map[string]string) error {
	var options []byte
	for _, key := range []string{"user", "dbname"} {
		if v, ok := opts[key]; ok {
			options = append(options, key...)
			options = append(options, 0)
			options = append(options, v...)
			options = append(options, 0)
		}
	}
	options = append(options, 0)

	startup := mockpg.StartupPacket{
		Major:   mockpg.ProtocolMajor,
		Minor:   mockpg.ProtocolMinor,
		Options: options,
	}
	if err := c.write(startup.Encode()); err != nil {
		return err
	}

	c.params = map[string]string{}
	for {
		// A server may reject the startup packet with a v2-style error: a
		// bare 'E' followed by NUL-terminated text, with no length word.
		tag, err := c.peekTag()
		if err != nil {
			return err
		}
		if tag == 'E' {
			return c.readLegacyError()
		}

		msg, err := c.readMessage()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case mockpg.AuthenticationOK:
			// nothing to do
		case mockpg.ParameterStatus:
			c.params[m.Key] = m.Value
		case mockpg.BackendKeyData:
			// ignored; this driver never cancels queries
		case mockpg.ReadyForQuery:
			return nil
		default:
			return fmt.Errorf("unexpected %T during connection startup", msg)
		}
	}
}

func (c *Conn) readLegacyError() error {
	if _, err := c.r.Discard(1); err != nil {
		return err
	}
	text, err := c.r.ReadString(0)
	if err != nil {
		return err
	}
	return errors.New(text[:len(text)-1])
}

func (c *Conn) peekTag() (byte, error) {
	if err := c.setDeadline(); err != nil {
		return 0, err
	}
	buf, err := c.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *Conn) readMessage() (mockpg.Message, error) {
	if err := c.setDeadline(); err != nil {
		return nil, err
	}
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.r, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length < 4 {
		return nil, fmt.Errorf("server message declares invalid length %d", length)
	}
	payload := make([]byte, length-4)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, err
	}
	return mockpg.DecodeMessage(header[0], payload)
}

func (c *Conn) write(data []byte) error {
	if err := c.setDeadline(); err != nil {
		return err
	}
	_, err := c.sock.Write(data)
	return err
}

func (c *Conn) setDeadline() error {
	return c.sock.SetDeadline(time.Now().Add(c.timeout))
}

func (c *Conn) Status() pqclient.ConnStatus { return c.status }

func (c *Conn) ErrorMessage() string { return c.errMsg }

func (c *Conn) Exec(query string) pqclient.RawResult {
	if c.sock == nil {
		c.errMsg = "no connection to the server"
		return nil
	}
	if err := c.write(mockpg.SimpleQuery{Query: query}.Encode()); err != nil {
		c.errMsg = err.Error()
		return nil
	}

	status := pqclient.ResultCommandOK
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.errMsg = err.Error()
			return nil
		}
		switch msg.(type) {
		case mockpg.EmptyQueryResponse:
			status = pqclient.ResultEmptyQuery
		case mockpg.ReadyForQuery:
			return &Result{status: status}
		default:
			c.errMsg = fmt.Sprintf("unexpected %T in query response", msg)
			return nil
		}
	}
}

func (c *Conn) Finish() {
	if c.sock == nil {
		return
	}
	_ = c.write(mockpg.Terminate{}.Encode())
	_ = c.sock.Close()
	c.sock = nil
}

// Result is the scripted driver's result handle.
type Result struct {
	status pqclient.ResultStatus
}

func (r *Result) Status() pqclient.ResultStatus { return r.status }

func (r *Result) Clear() {}
