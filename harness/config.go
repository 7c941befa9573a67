package harness

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jchampio/libpq-test-harness/framework"
)

// DefaultTestTimeout is used when PG_TEST_TIMEOUT_DEFAULT is unset or cannot
// be parsed. It matches the conventional Postgres test timeout.
const DefaultTestTimeout = 180 * time.Second

// Environment variables read at harness setup.
const (
	envTimeoutDefault = "PG_TEST_TIMEOUT_DEFAULT"
	envTestExtra      = "PG_TEST_EXTRA"
)

// Config carries the environment-driven settings for a harness run. Values
// come from built-in defaults, then an optional YAML file, then the process
// environment, in increasing order of precedence.
type Config struct {
	// TimeoutDefault is the per-test time budget.
	TimeoutDefault time.Duration

	// Extras gates optional test groups, e.g. "ssl" for the suites that open
	// network sockets.
	Extras framework.Capabilities

	// SocketDir, if set, overrides the directory used for UNIX-domain server
	// sockets. When empty, each mock server creates its own temp directory.
	SocketDir string
}

type fileConfig struct {
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	Extra          []string `yaml:"extra"`
	SocketDir      string   `yaml:"socketDir"`
}

// LoadConfig builds the run configuration. A missing or unreadable config
// file is an error, since the path was given explicitly; malformed
// environment values are not, and degrade to defaults with a logged warning.
func LoadConfig(configFilePath string, logger framework.Logger) (Config, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	c := Config{TimeoutDefault: DefaultTestTimeout}

	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			return Config{}, fmt.Errorf("cannot read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("cannot parse config file %s: %w", configFilePath, err)
		}
		if fc.TimeoutSeconds > 0 {
			c.TimeoutDefault = time.Duration(fc.TimeoutSeconds) * time.Second
		}
		if len(fc.Extra) > 0 {
			c.Extras = framework.Capabilities(fc.Extra)
		}
		c.SocketDir = fc.SocketDir
	}

	if value := os.Getenv(envTimeoutDefault); value != "" {
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			warning := &ConfigurationError{
				Setting: envTimeoutDefault,
				Detail:  fmt.Sprintf("%q is not a positive integer", value),
			}
			logger.Printf("%s; using the %s default", warning, DefaultTestTimeout)
		} else {
			c.TimeoutDefault = time.Duration(seconds) * time.Second
		}
	}

	if value, ok := os.LookupEnv(envTestExtra); ok {
		c.Extras = framework.ParseExtras(value)
	}

	return c, nil
}
