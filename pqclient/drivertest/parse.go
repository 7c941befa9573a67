package drivertest

import (
	"fmt"
	"strings"
)

// ParseConnString parses a connection string using the same grammar the
// native client applies: whitespace-separated key=value settings, optional
// whitespace around '=', single-quoted values, and backslash escaping both
// inside and outside quotes. The harness relies on this being faithful so
// that quoting bugs in the connection-string builder show up as parse
// differences rather than confusing downstream errors.
func ParseConnString(conninfo string) (map[string]string, error) {
	settings := map[string]string{}
	s := conninfo

	for {
		s = strings.TrimLeft(s, " \t\n\r")
		if s == "" {
			return settings, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return nil, fmt.Errorf(`missing "=" after %q in connection info string`, s)
		}
		key := strings.TrimRight(s[:eq], " \t\n\r")
		if key == "" || strings.ContainsAny(key, " \t\n\r") {
			return nil, fmt.Errorf(`invalid connection option name %q`, key)
		}
		s = strings.TrimLeft(s[eq+1:], " \t\n\r")

		value, rest, err := parseValue(s)
		if err != nil {
			return nil, err
		}
		settings[key] = value
		s = rest
	}
}

func parseValue(s string) (string, string, error) {
	var out strings.Builder

	if strings.HasPrefix(s, "'") {
		s = s[1:]
		for {
			if s == "" {
				return "", "", fmt.Errorf("unterminated quoted string in connection info string")
			}
			switch s[0] {
			case '\'':
				return out.String(), s[1:], nil
			case '\\':
				if len(s) < 2 {
					return "", "", fmt.Errorf("unterminated quoted string in connection info string")
				}
				out.WriteByte(s[1])
				s = s[2:]
			default:
				out.WriteByte(s[0])
				s = s[1:]
			}
		}
	}

	for s != "" && !isSpace(s[0]) {
		if s[0] == '\\' {
			if len(s) < 2 {
				return "", "", fmt.Errorf("trailing backslash in connection info string")
			}
			out.WriteByte(s[1])
			s = s[2:]
			continue
		}
		out.WriteByte(s[0])
		s = s[1:]
	}
	return out.String(), s, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
