package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/application/logging"
)

// captureLogger records every event for assertions
type captureLogger struct {
	levels   []string
	messages []string
	metadata []map[string]interface{}
}

func (c *captureLogger) Log(level, message string, md map[string]interface{}) {
	c.levels = append(c.levels, level)
	c.messages = append(c.messages, message)
	c.metadata = append(c.metadata, md)
}

func TestLoggerFromContext_FallsBackToNoOp(t *testing.T) {
	// Arrange
	ctx := context.Background()

	// Act
	logger := logging.LoggerFromContext(ctx)

	// Assert: must not panic, events go nowhere.
	require.NotNil(t, logger)
	logger.Log(logging.LevelInfo, "dropped", nil)
}

func TestWithLogger_RoundTripsThroughContext(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	ctx := logging.WithLogger(context.Background(), capture)

	// Act
	logging.LoggerFromContext(ctx).Log(logging.LevelInfo, "task staged", map[string]interface{}{"row": 3})

	// Assert
	require.Len(t, capture.messages, 1)
	assert.Equal(t, "task staged", capture.messages[0])
	assert.Equal(t, 3, capture.metadata[0]["row"])
}

func TestLevelFilter_DropsBelowThreshold(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	filtered := logging.NewLevelFilter(logging.LevelWarning, capture)

	// Act
	filtered.Log(logging.LevelDebug, "verbose", nil)
	filtered.Log(logging.LevelInfo, "routine", nil)
	filtered.Log(logging.LevelWarning, "lease expiring", nil)
	filtered.Log(logging.LevelError, "publish failed", nil)

	// Assert
	assert.Equal(t, []string{logging.LevelWarning, logging.LevelError}, capture.levels)
}

func TestLevelFilter_AcceptsConfigSpellings(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	filtered := logging.NewLevelFilter("warn", capture)

	// Act
	filtered.Log(logging.LevelInfo, "routine", nil)
	filtered.Log(logging.LevelWarning, "lease expiring", nil)

	// Assert
	assert.Equal(t, []string{logging.LevelWarning}, capture.levels)
}

func TestLevelFilter_UnknownLevelRanksAsInfo(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	filtered := logging.NewLevelFilter(logging.LevelInfo, capture)

	// Act: a typoed level must not be silenced below an info threshold.
	filtered.Log("NOTICE", "still visible", nil)

	// Assert
	assert.Equal(t, []string{"NOTICE"}, capture.levels)
}

func TestMultiLogger_FansOutToEverySink(t *testing.T) {
	// Arrange
	first := &captureLogger{}
	second := &captureLogger{}
	multi := logging.NewMultiLogger(first, second)

	// Act
	multi.Log(logging.LevelInfo, "shuttle initialized", nil)

	// Assert
	assert.Equal(t, []string{"shuttle initialized"}, first.messages)
	assert.Equal(t, []string{"shuttle initialized"}, second.messages)
}
