package pqclient

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Params is a map of connection parameters, flattened into a connection
// string by ConnString. Values may be any type with a reasonable string
// representation (ports are typically ints).
type Params map[string]interface{}

// Merge returns a copy of p with the other map's entries layered on top.
func (p Params) Merge(other Params) Params {
	merged := make(Params, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// ConnString flattens the parameters into key=value tokens, sorted by key for
// determinism. Quoting must be bit-exact, since the native library parses the
// result literally: an empty value renders as '', quote and backslash are
// backslash-escaped, and values containing spaces are single-quoted.
func (p Params) ConnString() string {
	keys := maps.Keys(p)
	slices.Sort(keys)

	settings := make([]string, 0, len(keys))
	for _, k := range keys {
		settings = append(settings, fmt.Sprintf("%s=%s", k, quoteValue(fmt.Sprint(p[k]))))
	}
	return strings.Join(settings, " ")
}

func quoteValue(v string) string {
	if v == "" {
		return "''"
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	if strings.Contains(v, " ") {
		v = "'" + v + "'"
	}
	return v
}
