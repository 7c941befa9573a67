// Package mockpg implements a scriptable mock Postgres peer: the binary
// framing for the startup/negotiation handshake and the simple-query
// exchange, plus a background server that runs a scripted handler against a
// single accepted connection.
//
// Only the minimal protocol surface needed for deterministic client tests is
// implemented; this is not a database server.
package mockpg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Protocol version asserted in startup packets.
const (
	ProtocolMajor = 3
	ProtocolMinor = 0
)

// The SSLRequest sentinel version pair.
const (
	sslRequestMajor = 1234
	sslRequestMinor = 5679
)

// Type tags for post-handshake messages. The tag byte is followed by a 4-byte
// big-endian length that includes itself but not the tag.
const (
	tagAuthentication     = 'R'
	tagParameterStatus    = 'S'
	tagBackendKeyData     = 'K'
	tagReadyForQuery      = 'Z'
	tagSimpleQuery        = 'Q'
	tagEmptyQueryResponse = 'I'
	tagTerminate          = 'X'
)

// FramingError indicates a declared length mismatch or an unexpected byte
// sequence on the wire. It is fatal to the handler invocation that hits it
// and surfaces at the server join.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Reason
}

func framingErrorf(format string, args ...interface{}) *FramingError {
	return &FramingError{Reason: fmt.Sprintf(format, args...)}
}

// Message is one of the wire messages understood by the framer. Encode
// returns the exact byte representation; the framer is stateless and pure.
type Message interface {
	Encode() []byte
}

// StartupPacket is the first message a client sends, declaring its protocol
// version. The option list that follows the version word is carried opaquely;
// the mock server never parses it beyond the version assertion.
type StartupPacket struct {
	Major, Minor uint16
	Options      []byte
}

func (m StartupPacket) Encode() []byte {
	buf := make([]byte, 8, 8+len(m.Options))
	binary.BigEndian.PutUint32(buf, uint32(8+len(m.Options)))
	binary.BigEndian.PutUint16(buf[4:], m.Major)
	binary.BigEndian.PutUint16(buf[6:], m.Minor)
	return append(buf, m.Options...)
}

// SSLRequest asks the server to upgrade the connection to TLS before the real
// startup packet is sent.
type SSLRequest struct{}

func (SSLRequest) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf, 8)
	binary.BigEndian.PutUint16(buf[4:], sslRequestMajor)
	binary.BigEndian.PutUint16(buf[6:], sslRequestMinor)
	return buf
}

// SSLResponse is the server's single unframed answer byte to an SSLRequest:
// 'S' to accept the upgrade, 'N' to reject it.
type SSLResponse struct {
	Accepted bool
}

func (m SSLResponse) Encode() []byte {
	if m.Accepted {
		return []byte{'S'}
	}
	return []byte{'N'}
}

// AuthenticationOK tells the client that no authentication is required.
type AuthenticationOK struct{}

func (AuthenticationOK) Encode() []byte {
	return encodeTagged(tagAuthentication, make([]byte, 4))
}

// ParameterStatus reports a server parameter setting as two NUL-terminated
// strings.
type ParameterStatus struct {
	Key, Value string
}

func (m ParameterStatus) Encode() []byte {
	payload := make([]byte, 0, len(m.Key)+len(m.Value)+2)
	payload = appendCString(payload, m.Key)
	payload = appendCString(payload, m.Value)
	return encodeTagged(tagParameterStatus, payload)
}

// BackendKeyData carries the cancellation key for the session.
type BackendKeyData struct {
	PID, Secret uint32
}

func (m BackendKeyData) Encode() []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload, m.PID)
	binary.BigEndian.PutUint32(payload[4:], m.Secret)
	return encodeTagged(tagBackendKeyData, payload)
}

// ReadyForQuery marks the end of a message sequence; the status byte is 'I'
// when the session is idle.
type ReadyForQuery struct {
	Status byte
}

func (m ReadyForQuery) Encode() []byte {
	return encodeTagged(tagReadyForQuery, []byte{m.Status})
}

// SimpleQuery is the client's non-prepared query message.
type SimpleQuery struct {
	Query string
}

func (m SimpleQuery) Encode() []byte {
	return encodeTagged(tagSimpleQuery, appendCString(nil, m.Query))
}

// EmptyQueryResponse is the server's answer to an empty query string.
type EmptyQueryResponse struct{}

func (EmptyQueryResponse) Encode() []byte {
	return encodeTagged(tagEmptyQueryResponse, nil)
}

// Terminate is sent by the client before it closes the connection.
type Terminate struct{}

func (Terminate) Encode() []byte {
	return encodeTagged(tagTerminate, nil)
}

func encodeTagged(tag byte, payload []byte) []byte {
	buf := make([]byte, 5, 5+len(payload))
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:], uint32(4+len(payload)))
	return append(buf, payload...)
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// DecodeMessage interprets the payload of a tagged message. The payload
// excludes the tag and the length word; the declared length must already have
// been validated against the bytes actually read.
func DecodeMessage(tag byte, payload []byte) (Message, error) {
	switch tag {
	case tagAuthentication:
		if len(payload) != 4 {
			return nil, framingErrorf("authentication message has %d payload bytes, want 4", len(payload))
		}
		if status := binary.BigEndian.Uint32(payload); status != 0 {
			return nil, framingErrorf("unsupported authentication status %d", status)
		}
		return AuthenticationOK{}, nil

	case tagParameterStatus:
		key, rest, err := takeCString(payload)
		if err != nil {
			return nil, err
		}
		value, rest, err := takeCString(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, framingErrorf("%d trailing bytes after ParameterStatus strings", len(rest))
		}
		return ParameterStatus{Key: key, Value: value}, nil

	case tagBackendKeyData:
		if len(payload) != 8 {
			return nil, framingErrorf("BackendKeyData has %d payload bytes, want 8", len(payload))
		}
		return BackendKeyData{
			PID:    binary.BigEndian.Uint32(payload),
			Secret: binary.BigEndian.Uint32(payload[4:]),
		}, nil

	case tagReadyForQuery:
		if len(payload) != 1 {
			return nil, framingErrorf("ReadyForQuery has %d payload bytes, want 1", len(payload))
		}
		return ReadyForQuery{Status: payload[0]}, nil

	case tagSimpleQuery:
		query, rest, err := takeCString(payload)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, framingErrorf("%d trailing bytes after query string", len(rest))
		}
		return SimpleQuery{Query: query}, nil

	case tagEmptyQueryResponse:
		if len(payload) != 0 {
			return nil, framingErrorf("EmptyQueryResponse has %d payload bytes, want 0", len(payload))
		}
		return EmptyQueryResponse{}, nil

	case tagTerminate:
		if len(payload) != 0 {
			return nil, framingErrorf("Terminate has %d payload bytes, want 0", len(payload))
		}
		return Terminate{}, nil

	default:
		return nil, framingErrorf("unexpected message type %q", tag)
	}
}

// DecodeStartupMessage interprets the body of a length-prefixed startup-phase
// message (everything after the length word itself).
func DecodeStartupMessage(body []byte) (Message, error) {
	if len(body) < 4 {
		return nil, framingErrorf("startup message declares only %d bytes after its length", len(body))
	}
	major := binary.BigEndian.Uint16(body)
	minor := binary.BigEndian.Uint16(body[2:])
	if major == sslRequestMajor && minor == sslRequestMinor {
		if len(body) != 4 {
			return nil, framingErrorf("SSLRequest has length %d, want 8", len(body)+4)
		}
		return SSLRequest{}, nil
	}
	return StartupPacket{Major: major, Minor: minor, Options: body[4:]}, nil
}

func takeCString(payload []byte) (string, []byte, error) {
	i := bytes.IndexByte(payload, 0)
	if i < 0 {
		return "", nil, framingErrorf("string is missing its NUL terminator")
	}
	return string(payload[:i]), payload[i+1:], nil
}
