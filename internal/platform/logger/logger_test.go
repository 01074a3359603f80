package logger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/mataresit/embedq/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestWithLoggerAndFromContext(t *testing.T) {
	customLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := logger.WithLogger(context.Background(), customLogger)
	assert.Same(t, customLogger, logger.FromContext(ctx))

	// A context without a logger falls back to the default
	assert.NotNil(t, logger.FromContext(context.Background()))

	assert.Panics(t, func() {
		logger.WithLogger(context.Background(), nil)
	})
}

func TestFromContextOrDefault(t *testing.T) {
	defaultLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	customLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{
			name:     "logger present in context",
			ctx:      logger.WithLogger(context.Background(), customLogger),
			expected: customLogger,
		},
		{
			name:     "no logger in context",
			ctx:      context.Background(),
			expected: defaultLogger,
		},
		{
			name:     "nil context",
			ctx:      nil,
			expected: defaultLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.FromContextOrDefault(tt.ctx, defaultLogger)
			assert.Same(t, tt.expected, result)
		})
	}
}

func TestSetupTestLoggerCapturesEntries(t *testing.T) {
	logBuf, testLogger, cleanup := logger.SetupTestLogger(t, nil)
	defer cleanup()

	testLogger.Info("claimed batch", "worker_id", "worker-1", "batch_size", 10)

	entries, err := logBuf.GetLogEntries()
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "claimed batch", entries[0]["msg"])
	assert.Equal(t, "worker-1", entries[0]["worker_id"])
}
