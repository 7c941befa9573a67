package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jchampio/libpq-test-harness/framework/pqtest"
)

type commandParams struct {
	configFile string
	filters    pqtest.RegexFilters
	debug      bool
	debugAll   bool
	jUnitFile  string
	tapFile    string
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.configFile, "config", "", "path to an optional YAML configuration file")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&c.tapFile, "tap", "", `write TAP output to the specified path ("-" for stdout)`)

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	return true
}
