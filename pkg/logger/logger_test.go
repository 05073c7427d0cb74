package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/environment"
	"github.com/togetheros/rollout/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf)).Info("hello")
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText)).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "cp"))).Info("m")
		assert.Equal(t, "cp", decode(t, buf)["svc"])
	})

	t.Run("level filters", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn)).Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("context extractors", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(environment.LoggerExtractor(), nil),
		)
		ctx := environment.WithContext(context.Background(), environment.Staging)
		log.InfoContext(ctx, "m")
		assert.Equal(t, "staging", decode(t, buf)["env"])
	})

	t.Run("extractors survive With", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(environment.LoggerExtractor()),
		).With(logger.Component("canary"))
		ctx := environment.WithContext(context.Background(), environment.Production)
		log.InfoContext(ctx, "m")
		entry := decode(t, buf)
		assert.Equal(t, "production", entry["env"])
		assert.Equal(t, "canary", entry["component"])
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("development is text at debug", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithEnvironment("dev", "cp"), logger.WithOutput(buf)).Debug("m")
		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "service=cp")
		assert.Contains(t, out, "env=development")
	})

	t.Run("production is json at info", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "cp"), logger.WithOutput(buf))
		log.Debug("dropped")
		assert.Empty(t, buf.String())
		log.Info("kept")
		entry := decode(t, buf)
		assert.Equal(t, "cp", entry["service"])
		assert.Equal(t, "production", entry["env"])
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	err := errors.New("boom")
	assert.Equal(t, slog.Any("error", err), logger.Error(err))
	assert.Equal(t, "flag", logger.Flag("x").Key)
	assert.Equal(t, "route", logger.Route("/a").Key)
	assert.Equal(t, "deployment_id", logger.DeploymentID("d").Key)
	assert.Equal(t, "version", logger.Version("v").Key)
	assert.Equal(t, "severity", logger.Severity("critical").Key)
	assert.Equal(t, "path", logger.Path("/tmp").Key)
}
