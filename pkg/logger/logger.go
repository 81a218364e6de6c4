package logger

import (
	"context"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	RunIdKey contextKey = "run_id_ctx"
	RunId    string     = "run_id"
)

// NewRunId returns a fresh identifier for a setup run
func NewRunId() string {
	return uuid.NewString()
}

// WithRunId Create a copy of context with run id added
func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, RunIdKey, Logger(ctx).WithFields(logrus.Fields{RunId: runId}))
}

// RunIdFromContext returns the run id carried by the context logger, if any
func RunIdFromContext(ctx context.Context) string {
	if ctxLogger, ok := ctx.Value(RunIdKey).(*logrus.Entry); ok {
		if id, ok := ctxLogger.Data[RunId].(string); ok {
			return id
		}
	}
	return ""
}

// Logger Return a reference of logrus.Entry with run_id set field
func Logger(ctx context.Context) *logrus.Entry {
	if ctxLogger, ok := ctx.Value(RunIdKey).(*logrus.Entry); ok {
		return ctxLogger
	}

	log := logrus.StandardLogger()
	logger := logrus.NewEntry(log)
	return logger
}

// AddValueToContextLogger adds new key-value in the existing logger present in context
func AddValueToContextLogger(ctx context.Context, key string, value interface{}) context.Context {
	log := Logger(ctx)
	return context.WithValue(ctx, RunIdKey, log.WithField(key, value))
}

// Init initializes logrus
func Init() {
	log := logrus.StandardLogger()
	updateLog(log)
}

func updateLog(log *logrus.Logger) {
	log.Formatter = &logrus.JSONFormatter{}
	log.Out = os.Stdout
	log.SetLevel(getLevel())
}

func getLevel() logrus.Level {
	debugMode, _ := strconv.ParseBool(os.Getenv("DEBUG_MODE"))
	if debugMode {
		return logrus.DebugLevel
	} else {
		return logrus.InfoLevel
	}
}
