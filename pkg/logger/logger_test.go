package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	l, err := New("debug", false)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	dev, err := New("warn", true)
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zapcore.InfoLevel))
}

func TestWithCorrelationID(t *testing.T) {
	l := Nop()
	assert.Same(t, l, l.WithCorrelationID(""))
	assert.NotSame(t, l, l.WithCorrelationID("abc"))
}

func TestSetGlobalIgnoresNil(t *testing.T) {
	before := Global()
	SetGlobal(nil)
	assert.Same(t, before, Global())
}
