package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/demoview/tickpack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), config.OTelConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_NoExporter(t *testing.T) {
	_, err := New(context.Background(), config.OTelConfig{Enabled: true, ServiceName: "tickpack"}, nil)
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.OTelConfig{Enabled: true, ServiceName: "tickpack", BatchTimeout: time.Second}

	p, err := New(context.Background(), cfg, &buf)
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}
