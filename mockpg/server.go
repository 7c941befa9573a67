package mockpg

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/framework/helpers"
	"github.com/jchampio/libpq-test-harness/harness"
)

// UNIX-domain sockets follow the server naming convention of
// <dir>/.s.PGSQL.<port>; clients derive the path from the host directory and
// port, so the port is fixed even though nothing is listening on TCP.
const unixSocketPort = 5432

// Handler is the scripted exchange a test runs against the single accepted
// connection. A returned error is captured by the worker and re-surfaced on
// the test side when the server is closed.
type Handler func(*Conn) error

// ServerState describes where a Server is in its lifecycle. Transitions are
// Idle → Listening → Accepted → Completed or Failed → Joined.
type ServerState int

const (
	StateIdle ServerState = iota
	StateListening
	StateAccepted
	StateCompleted
	StateFailed
	StateJoined
)

func (s ServerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAccepted:
		return "accepted"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateJoined:
		return "joined"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Server listens for exactly one client connection and serves it with a
// scripted Handler on a background goroutine. The worker never propagates
// failures itself; they are written once to a channel and read once during
// Close, so that a protocol violation or handler assertion is attributed to
// the owning test.
type Server struct {
	id     string
	logger framework.Logger
	budget *harness.TimeoutBudget
	stack  *harness.ResourceStack

	network    string // "unix" or "tcp"
	socketDir  string
	socketPath string
	tlsConfig  *tls.Config

	listener net.Listener
	conninfo map[string]interface{}
	failure  chan error
	started  bool

	state     ServerState
	stateLock sync.Mutex
}

// ServerOption configures a Server before it binds its listener.
type ServerOption helpers.ConfigOption[Server]

type serverOptionTCP struct{}

func (o serverOptionTCP) Configure(s *Server) error {
	s.network = "tcp"
	return nil
}

// ListenTCP makes the server bind a loopback TCP socket with an OS-assigned
// port instead of a UNIX-domain socket.
func ListenTCP() ServerOption { return serverOptionTCP{} }

type serverOptionUnixDir struct {
	dir string
}

func (o serverOptionUnixDir) Configure(s *Server) error {
	s.network = "unix"
	s.socketDir = o.dir
	return nil
}

// ListenUnixDir makes the server create its UNIX-domain socket inside the
// given directory instead of a fresh temp directory.
func ListenUnixDir(dir string) ServerOption { return serverOptionUnixDir{dir} }

type serverOptionTLS struct {
	config *tls.Config
}

func (o serverOptionTLS) Configure(s *Server) error {
	s.tlsConfig = o.config
	return nil
}

// WithTLS supplies the certificate configuration used by BackgroundTLS to
// upgrade the accepted connection.
func WithTLS(config *tls.Config) ServerOption { return serverOptionTLS{config} }

// NewServer creates a mock server and binds its listening socket immediately.
// A bind failure is returned as-is; it is fatal to the test and never
// retried. The default addressing is a UNIX-domain socket in a fresh temp
// directory; see ListenTCP.
//
// The requested listen backlog is one connection. Go's net package does not
// expose the backlog, so the OS default applies; this makes no difference for
// single-connection scripts.
func NewServer(
	budget *harness.TimeoutBudget,
	logger framework.Logger,
	options ...ServerOption,
) (*Server, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	id := uuid.NewString()
	s := &Server{
		id:      id,
		budget:  budget,
		network: "unix",
		failure: make(chan error, 1),
		state:   StateIdle,
	}
	s.logger = framework.LoggerWithPrefix(logger, fmt.Sprintf("[mock server %s] ", id[:8]))
	s.stack = harness.NewResourceStack(s.logger)
	if err := helpers.ApplyOptions(s, options...); err != nil {
		return nil, err
	}

	if err := s.bindAndListen(); err != nil {
		_ = s.stack.ReleaseAll()
		return nil, err
	}
	return s, nil
}

func (s *Server) bindAndListen() error {
	switch s.network {
	case "unix":
		dir := s.socketDir
		if dir == "" {
			tmp, err := os.MkdirTemp("", "mockpg")
			if err != nil {
				return fmt.Errorf("creating socket directory: %w", err)
			}
			dir = tmp
			s.stack.Push("socket directory", func() error { return os.RemoveAll(tmp) })
		}
		s.socketDir = dir
		s.socketPath = filepath.Join(dir, fmt.Sprintf(".s.PGSQL.%d", unixSocketPort))

		listener, err := net.Listen("unix", s.socketPath)
		if err != nil {
			return fmt.Errorf("binding %s: %w", s.socketPath, err)
		}
		// Lock down the socket file. The listener unlinks it on close.
		if err := os.Chmod(s.socketPath, 0o700); err != nil {
			_ = listener.Close()
			return fmt.Errorf("restricting socket permissions: %w", err)
		}
		s.listener = listener
		s.conninfo = map[string]interface{}{
			"host": dir,
			"port": unixSocketPort,
		}

	case "tcp":
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("binding loopback: %w", err)
		}
		s.listener = listener
		addr := listener.Addr().(*net.TCPAddr)
		s.conninfo = map[string]interface{}{
			"hostaddr": addr.IP.String(),
			"port":     addr.Port,
		}

	default:
		return fmt.Errorf("unsupported network %q", s.network)
	}

	s.stack.Push("listening socket", s.listener.Close)
	s.setState(StateListening)
	s.logger.Printf("listening on %s", s.listener.Addr())
	return nil
}

// ConnInfo returns the connection parameters a client needs to reach this
// server: host+port for UNIX sockets, hostaddr+port for TCP.
func (s *Server) ConnInfo() map[string]interface{} {
	info := make(map[string]interface{}, len(s.conninfo))
	for k, v := range s.conninfo {
		info[k] = v
	}
	return info
}

// SocketPath returns the UNIX socket path, or "" for a TCP server.
func (s *Server) SocketPath() string { return s.socketPath }

// Addr returns the address of the listening socket.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// State reports the server's current lifecycle state.
func (s *Server) State() ServerState {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.state
}

func (s *Server) setState(state ServerState) {
	s.stateLock.Lock()
	s.state = state
	s.stateLock.Unlock()
}

// Background accepts one client connection on a background goroutine and
// passes it to the handler. Any error from the accept, from a timeout, or
// from the handler itself is captured rather than propagated, and re-raised
// by Close on the test side.
//
// Blocking operations on the connection default to the budget's remaining
// time. Only one Background call per server is supported.
func (s *Server) Background(handler Handler) {
	s.started = true
	go func() {
		err := s.serveOne(handler)
		if err != nil {
			s.logger.Printf("worker failed: %s", err)
			s.setState(StateFailed)
		} else {
			s.setState(StateCompleted)
		}
		s.failure <- err
	}()
}

// BackgroundTLS is like Background, but first validates that the client opens
// with an SSLRequest, accepts it, and performs the server side of the TLS
// handshake before invoking the handler on the upgraded connection. The
// server must have been created with WithTLS.
func (s *Server) BackgroundTLS(handler Handler) {
	s.Background(func(c *Conn) error {
		if s.tlsConfig == nil {
			return errors.New("server was created without WithTLS")
		}
		msg, err := c.ReadStartupMessage()
		if err != nil {
			return err
		}
		if _, ok := msg.(SSLRequest); !ok {
			return framingErrorf("expected an SSLRequest, got %T", msg)
		}
		if err := c.Send(SSLResponse{Accepted: true}); err != nil {
			return err
		}

		tlsConn := tls.Server(c.raw, s.tlsConfig)
		if err := tlsConn.SetDeadline(time.Now().Add(s.budget.Remaining())); err != nil {
			return err
		}
		if err := tlsConn.Handshake(); err != nil {
			return fmt.Errorf("TLS handshake: %w", err)
		}
		return handler(newConn(tlsConn, s.budget, s.logger))
	})
}

func (s *Server) serveOne(handler Handler) error {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := s.listener.(deadliner); ok {
		if err := d.SetDeadline(time.Now().Add(s.budget.Remaining())); err != nil {
			return err
		}
	}

	conn, err := s.listener.Accept()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return &harness.TimeoutError{Operation: "accepting a client connection"}
		}
		return err
	}
	s.setState(StateAccepted)
	s.logger.Printf("accepted a connection")
	defer conn.Close()

	return handler(newConn(conn, s.budget, s.logger))
}

// Close joins the background worker and releases the server's sockets. It
// blocks for at most the budget's remaining time plus one second; a worker
// that is still running past that bound is abandoned (its socket may leak)
// and reported as a timeout. A failure captured by the worker is returned
// here, exactly once, so that it surfaces in the owning test. Release
// failures are aggregated after any worker failure, never in place of it.
func (s *Server) Close() error {
	joinErr := s.join()
	releaseErr := s.stack.ReleaseAll()
	return errors.Join(joinErr, releaseErr)
}

func (s *Server) join() error {
	if !s.started {
		return nil
	}
	s.started = false

	// Allow a little slack beyond the budget, since the worker is racing
	// against the test's own use of Remaining(). It's preferable for tests to
	// report their own timeouts; those errors point at the blocked spot.
	wait := s.budget.Remaining() + time.Second
	maybeErr := helpers.TryReceive(s.failure, wait)
	if !maybeErr.IsDefined() {
		return &harness.TimeoutError{
			Operation: "joining the background worker; it was abandoned and may leak its socket",
		}
	}
	s.setState(StateJoined)
	return maybeErr.Value()
}
