package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbound/fidokey"
)

func TestOpenTransport_DefaultsToPipeOverStdio(t *testing.T) {
	cfg := fidokey.DefaultConfig()

	transport, closeFn, err := openTransport(cfg, os.Stdin, os.Stdout)
	require.NoError(t, err)
	defer closeFn()

	_, ok := transport.(*fidokey.PipeTransport)
	assert.True(t, ok, "expected a PipeTransport when SerialDevice is unset")
}

func TestSignalSampler_StartsReleased(t *testing.T) {
	s := newSignalSampler()
	assert.Equal(t, fidokey.Released, s.ReadLevel())
}

func TestConsoleIndicator_TogglesOnOffAlternately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "led.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	indicator := &consoleIndicator{out: f}
	assert.False(t, indicator.on)
	indicator.Toggle()
	assert.True(t, indicator.on)
	indicator.Toggle()
	assert.False(t, indicator.on)
}

func TestRun_RejectsUnknownFlag(t *testing.T) {
	code := run([]string{"--not-a-real-flag"}, os.Stdin, os.Stdout, os.Stderr)
	assert.Equal(t, 2, code)
}
