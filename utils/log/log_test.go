package log_test

import (
	"context"
	"testing"

	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	testCases := map[string]struct {
		level       string
		development bool
		err         bool
	}{
		"default":     {},
		"debug":       {level: "debug"},
		"development": {level: "warn", development: true},
		"invalid":     {level: "loud", err: true},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			logger, err := log.New(testCase.level, testCase.development)

			if testCase.err {
				if err == nil {
					t.Fatalf("expected an error, got nil")
				}

				return
			}

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if logger == nil {
				t.Fatalf("expected a logger")
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	defaultLogger := zap.New(core)

	ctx := log.WithFields(context.Background(), zap.String("request", "abc"))
	logger, ctx := log.LoggerFromContext(ctx, defaultLogger)

	if log.Logger(ctx) != defaultLogger {
		t.Fatalf("expected the default logger to be attached to the context")
	}

	logger.Info("hello")

	entries := logs.All()

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if entries[0].ContextMap()["request"] != "abc" {
		t.Fatalf("expected the context fields on the entry, got %#v", entries[0].ContextMap())
	}

	if log.OrNop(nil) == nil {
		t.Fatalf("expected a no-op logger")
	}
}
