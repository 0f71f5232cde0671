package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestFromBytesDefaults(t *testing.T) {
	p := FromBytes([]byte{})
	assert.True(t, p.validateUTF8)
	assert.Greater(t, p.maxWorkers, 0)
	assert.NotNil(t, p.logger)
}

func TestWithValidateUTF8Disabled(t *testing.T) {
	// An invalid UTF-8 custom section name should only be rejected when
	// validation is enabled.
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	customSec := []byte{0, 3, 0x02, 0xFF, 0xFE}
	data := append(append([]byte{}, header...), customSec...)

	_, err := FromBytes(data).Parse()
	require.Error(t, err)

	m, err := FromBytes(data, WithValidateUTF8(false)).Parse()
	require.NoError(t, err)
	require.Len(t, m.CustomSections, 1)
}

func TestWithLogger(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := FromBytes([]byte{}, WithLogger(logger))
	assert.Same(t, logger, p.logger)
}

func TestWithMaxWorkers(t *testing.T) {
	p := FromBytes([]byte{}, WithMaxWorkers(2))
	assert.Equal(t, 2, p.maxWorkers)
}

func TestLoggerDefaultsToNoop(t *testing.T) {
	// The package logger defaults to a no-op and must not panic when used.
	assert.NotPanics(t, func() {
		Logger().Info("test message", zap.String("k", "v"))
	})
}
