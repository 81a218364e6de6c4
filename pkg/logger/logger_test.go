package logger

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestWithRunId(t *testing.T) {
	ctx := WithRunId(context.Background(), "run-123")

	assert.Equal(t, "run-123", RunIdFromContext(ctx))
	assert.Equal(t, "run-123", Logger(ctx).Data[RunId])
}

func TestRunIdFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", RunIdFromContext(context.Background()))
}

func TestAddValueToContextLogger(t *testing.T) {
	ctx := WithRunId(context.Background(), "run-1")
	ctx = AddValueToContextLogger(ctx, "step", "namespace")

	entry := Logger(ctx)
	assert.Equal(t, "namespace", entry.Data["step"])
	assert.Equal(t, "run-1", entry.Data[RunId])
}

func TestNewRunId(t *testing.T) {
	assert.NotEqual(t, NewRunId(), NewRunId())
}

func TestGetLevel(t *testing.T) {
	_ = os.Setenv("DEBUG_MODE", "true")
	assert.Equal(t, logrus.DebugLevel, getLevel())

	_ = os.Setenv("DEBUG_MODE", "false")
	assert.Equal(t, logrus.InfoLevel, getLevel())

	_ = os.Unsetenv("DEBUG_MODE")
}
