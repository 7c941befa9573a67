package mockpg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodingIsByteExact(t *testing.T) {
	for _, p := range []struct {
		name     string
		message  Message
		expected []byte
	}{
		{
			"StartupPacket",
			StartupPacket{Major: 3, Minor: 0, Options: []byte("user\x00alice\x00\x00")},
			append([]byte{0, 0, 0, 20, 0, 3, 0, 0}, "user\x00alice\x00\x00"...),
		},
		{
			"SSLRequest",
			SSLRequest{},
			[]byte{0, 0, 0, 8, 0x04, 0xd2, 0x16, 0x2f},
		},
		{
			"SSLResponse accept",
			SSLResponse{Accepted: true},
			[]byte{'S'},
		},
		{
			"SSLResponse reject",
			SSLResponse{Accepted: false},
			[]byte{'N'},
		},
		{
			"AuthenticationOK",
			AuthenticationOK{},
			[]byte{'R', 0, 0, 0, 8, 0, 0, 0, 0},
		},
		{
			"ParameterStatus",
			ParameterStatus{Key: "DateStyle", Value: "ISO, MDY"},
			append([]byte{'S', 0, 0, 0, 23}, "DateStyle\x00ISO, MDY\x00"...),
		},
		{
			"BackendKeyData",
			BackendKeyData{PID: 1234, Secret: 5678},
			[]byte{'K', 0, 0, 0, 12, 0, 0, 0x04, 0xd2, 0, 0, 0x16, 0x2e},
		},
		{
			"ReadyForQuery",
			ReadyForQuery{Status: 'I'},
			[]byte{'Z', 0, 0, 0, 5, 'I'},
		},
		{
			"SimpleQuery",
			SimpleQuery{Query: "SELECT 1"},
			append([]byte{'Q', 0, 0, 0, 13}, "SELECT 1\x00"...),
		},
		{
			"empty SimpleQuery",
			SimpleQuery{Query: ""},
			[]byte{'Q', 0, 0, 0, 5, 0},
		},
		{
			"EmptyQueryResponse",
			EmptyQueryResponse{},
			[]byte{'I', 0, 0, 0, 4},
		},
		{
			"Terminate",
			Terminate{},
			[]byte{'X', 0, 0, 0, 4},
		},
	} {
		t.Run(p.name, func(t *testing.T) {
			assert.Equal(t, p.expected, p.message.Encode())
		})
	}
}

func TestDecodeMessageRoundTrips(t *testing.T) {
	for _, message := range []Message{
		AuthenticationOK{},
		ParameterStatus{Key: "client_encoding", Value: "UTF-8"},
		BackendKeyData{PID: 42, Secret: 99},
		ReadyForQuery{Status: 'I'},
		SimpleQuery{Query: "SELECT 1"},
		SimpleQuery{Query: ""},
		EmptyQueryResponse{},
		Terminate{},
	} {
		encoded := message.Encode()
		decoded, err := DecodeMessage(encoded[0], encoded[5:])
		require.NoError(t, err)
		assert.Equal(t, message, decoded)
	}
}

func TestDecodeStartupMessage(t *testing.T) {
	startup := StartupPacket{Major: 3, Minor: 0, Options: []byte("user\x00bob\x00\x00")}
	decoded, err := DecodeStartupMessage(startup.Encode()[4:])
	require.NoError(t, err)
	assert.Equal(t, startup, decoded)

	decoded, err = DecodeStartupMessage(SSLRequest{}.Encode()[4:])
	require.NoError(t, err)
	assert.Equal(t, SSLRequest{}, decoded)
}

func TestDecodeRejectsMalformedMessages(t *testing.T) {
	for _, p := range []struct {
		name    string
		tag     byte
		payload []byte
	}{
		{"authentication payload too short", 'R', []byte{0, 0, 0}},
		{"authentication status not OK", 'R', []byte{0, 0, 0, 5}},
		{"ParameterStatus missing NUL", 'S', []byte("key\x00value")},
		{"ParameterStatus trailing bytes", 'S', []byte("key\x00value\x00junk\x00")},
		{"BackendKeyData wrong size", 'K', []byte{0, 0, 0, 1}},
		{"ReadyForQuery wrong size", 'Z', []byte{'I', 'I'}},
		{"SimpleQuery missing NUL", 'Q', []byte("SELECT 1")},
		{"SimpleQuery trailing bytes", 'Q', []byte("SELECT 1\x00extra")},
		{"EmptyQueryResponse with payload", 'I', []byte{0}},
		{"Terminate with payload", 'X', []byte{0}},
		{"unknown tag", '?', nil},
	} {
		t.Run(p.name, func(t *testing.T) {
			_, err := DecodeMessage(p.tag, p.payload)
			var framingErr *FramingError
			assert.True(t, errors.As(err, &framingErr), "expected a FramingError, got %v", err)
		})
	}
}

func TestDecodeStartupRejectsMalformedMessages(t *testing.T) {
	for _, p := range []struct {
		name string
		body []byte
	}{
		{"too short for a version word", []byte{0, 3}},
		{"SSLRequest with trailing bytes", []byte{0x04, 0xd2, 0x16, 0x2f, 0}},
	} {
		t.Run(p.name, func(t *testing.T) {
			_, err := DecodeStartupMessage(p.body)
			var framingErr *FramingError
			assert.True(t, errors.As(err, &framingErr), "expected a FramingError, got %v", err)
		})
	}
}
