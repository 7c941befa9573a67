package mockpg

import "fmt"

// Scripted handlers for the standard test scenarios. Each one reacts to the
// client's bytes as they arrive; synchronization with the test side is
// implicit in the blocking reads, which is sufficient for strictly
// alternating single-round-trip exchanges.

// expectStartup reads the client's startup packet and asserts the protocol
// version; the option list is discarded.
func expectStartup(c *Conn) error {
	msg, err := c.ReadStartupMessage()
	if err != nil {
		return err
	}
	startup, ok := msg.(StartupPacket)
	if !ok {
		return framingErrorf("expected a startup packet, got %T", msg)
	}
	if startup.Major != ProtocolMajor || startup.Minor != ProtocolMinor {
		return fmt.Errorf("client declared protocol %d.%d, want %d.%d",
			startup.Major, startup.Minor, ProtocolMajor, ProtocolMinor)
	}
	return nil
}

// RefuseSSL validates an incoming SSLRequest, rejects it with 'N', and waits
// for the client to give up and close the connection.
func RefuseSSL(c *Conn) error {
	msg, err := c.ReadStartupMessage()
	if err != nil {
		return err
	}
	if _, ok := msg.(SSLRequest); !ok {
		return framingErrorf("expected an SSLRequest, got %T", msg)
	}
	if err := c.Send(SSLResponse{Accepted: false}); err != nil {
		return err
	}
	return c.ExpectClose()
}

// ServeStartupError consumes the startup packet and then rejects the
// connection with a v2-style error message (a bare 'E' followed by the text
// and a NUL), the form servers use before the protocol version is settled.
func ServeStartupError(message string) Handler {
	return func(c *Conn) error {
		if err := expectStartup(c); err != nil {
			return err
		}
		if err := c.SendRaw(append(append([]byte{'E'}, message...), 0)); err != nil {
			return err
		}
		return c.ExpectClose()
	}
}

// ServeEmptyQuerySession performs the full litany of a successful session:
// authentication, parameter reporting, a key-data message, and readiness;
// then it answers one empty SimpleQuery with EmptyQueryResponse and expects
// the client to terminate cleanly.
func ServeEmptyQuerySession() Handler {
	return func(c *Conn) error {
		if err := expectStartup(c); err != nil {
			return err
		}

		err := c.Send(
			AuthenticationOK{},
			ParameterStatus{Key: "client_encoding", Value: "UTF-8"},
			ParameterStatus{Key: "DateStyle", Value: "ISO, MDY"},
			BackendKeyData{PID: 1234, Secret: 1234},
			ReadyForQuery{Status: 'I'},
		)
		if err != nil {
			return err
		}

		msg, err := c.ReadMessage()
		if err != nil {
			return err
		}
		query, ok := msg.(SimpleQuery)
		if !ok {
			return framingErrorf("expected a SimpleQuery, got %T", msg)
		}
		if query.Query != "" {
			return fmt.Errorf("expected an empty query, got %q", query.Query)
		}

		if err := c.Send(EmptyQueryResponse{}, ReadyForQuery{Status: 'I'}); err != nil {
			return err
		}

		msg, err = c.ReadMessage()
		if err != nil {
			return err
		}
		if _, ok := msg.(Terminate); !ok {
			return framingErrorf("expected Terminate, got %T", msg)
		}
		return c.ExpectClose()
	}
}
