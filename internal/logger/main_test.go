package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/logger"
)

func TestInit(t *testing.T) {
	type testCase struct {
		name             string
		cfg              logger.Log
		shouldHaveOutput bool
		outputIsJSON     bool
	}

	testCases := []testCase{
		{
			name: "no logger enabled log level not set",
			cfg: logger.Log{
				LogLevel:    "",
				ServiceName: "test",
				AppName:     "test",
			},
			shouldHaveOutput: false,
		},
		{
			name: "console enabled log level info",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true},
			},
			shouldHaveOutput: true,
		},
		{
			name: "console enabled console writer enabled",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
			},
			shouldHaveOutput: true,
		},
		{
			name: "console enabled console writer disabled info expect json",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: false},
			},
			shouldHaveOutput: true,
			outputIsJSON:     true,
		},
		{
			name: "trace with caller expect json stack",
			cfg: logger.Log{
				LogLevel:     "trace",
				ServiceName:  "test",
				AppName:      "test",
				ReportCaller: true,
				Console:      logger.Console{Enabled: true, UseConsoleWriter: false},
			},
			shouldHaveOutput: true,
			outputIsJSON:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := captureLogOutput(t, tc.cfg)
			t.Logf("out: %s", out)

			switch {
			case out == "" && tc.shouldHaveOutput:
				t.Errorf("expected console output but got none")
			case tc.outputIsJSON:
				type line struct { //nolint:musttag
					Level   string
					Message string
				}

				dummy := line{}

				for _, outLine := range strings.Split(out, "\n") {
					if outLine == "" {
						continue
					}

					if err := json.Unmarshal([]byte(outLine), &dummy); err != nil {
						t.Errorf("expected json output but got: %s", out)
					}
				}
			}
		})
	}
}

func TestInit_Invalid(t *testing.T) {
	if err := logger.Init(logger.Log{LogLevel: "nope", ServiceName: "s", AppName: "a"}); err == nil {
		t.Error("expected an error for an unknown log level")
	}

	if err := logger.Init(logger.Log{LogLevel: "info", AppName: "a"}); !errors.Is(err, logger.ErrServiceNameIsEmpty) {
		t.Errorf("expected ErrServiceNameIsEmpty, got: %v", err)
	}

	if err := logger.Init(logger.Log{LogLevel: "info", ServiceName: "s"}); !errors.Is(err, logger.ErrAppNameIsEmpty) {
		t.Errorf("expected ErrAppNameIsEmpty, got: %v", err)
	}
}

func alwaysErrFunc() error {
	return errors.New("a test error") //nolint:goerr113
}

func captureLogOutput(t *testing.T, cfg logger.Log) string {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	// capture stdout and stderr
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	err := logger.Init(cfg)
	if err != nil {
		t.Error(err)
	}

	log.Info().Msg("this info message should be seen...")
	log.Error().Err(alwaysErrFunc()).Msg("this err message should be seen...")
	log.Trace().Err(alwaysErrFunc()).Msg("this trace message should be seen...")

	outC := make(chan string)
	// copy the output in a separate goroutine so printing can't block indefinitely
	go func() {
		var buf bytes.Buffer
		_, err = io.Copy(&buf, r)
		if err != nil {
			t.Error(err)
		}
		outC <- buf.String()
	}()

	// back to normal state
	_ = w.Close()
	os.Stdout = stdout
	os.Stderr = stderr

	return <-outC
}
