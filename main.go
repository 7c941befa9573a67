package main

import (
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/harness"
	"github.com/jchampio/libpq-test-harness/harnesstests"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("libpq-test-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams) (*pqtest.Results, error) {
	var mainLogger framework.Logger = framework.NullLogger()
	if params.debugAll {
		mainLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	config, err := harness.LoadConfig(params.configFile, mainLogger)
	if err != nil {
		return nil, err
	}

	testHarness := harness.NewTestHarness(config, mainLogger)

	driver, err := pqclient.DefaultDriver()
	if err != nil {
		return nil, err
	}

	consoleLogger := pqtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	loggers := []pqtest.TestLogger{consoleLogger}
	if params.jUnitFile != "" {
		loggers = append(loggers, pqtest.NewJUnitTestLogger(params.jUnitFile, params.filters))
	}
	if params.tapFile != "" {
		loggers = append(loggers, pqtest.NewTAPTestLogger(params.tapFile))
	}
	var testLogger pqtest.TestLogger = consoleLogger
	if len(loggers) > 1 {
		testLogger = &pqtest.MultiTestLogger{Loggers: loggers}
	}

	results := harnesstests.RunTestSuite(testHarness, driver, params.filters, testLogger)

	fmt.Println()
	logErr := testLogger.EndLog(results)

	if err := testHarness.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to release harness resources: %s\n", err)
	}

	if logErr != nil {
		return nil, fmt.Errorf("error writing log: %v", logErr)
	}

	return &results, nil
}
