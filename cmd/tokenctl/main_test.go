package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbound/fidokey"
)

func TestDecodeHex_RejectsWrongLength(t *testing.T) {
	c := &console{out: &bytes.Buffer{}}
	_, ok := c.decodeHex("app_id_hash", "aabb", 20)
	assert.False(t, ok)
}

func TestDecodeHex_RejectsInvalidHex(t *testing.T) {
	c := &console{out: &bytes.Buffer{}}
	_, ok := c.decodeHex("app_id_hash", "not-hex!!", 20)
	assert.False(t, ok)
}

func TestDecodeHex_AcceptsExactLength(t *testing.T) {
	c := &console{out: &bytes.Buffer{}}
	want := bytes.Repeat([]byte{0xAB}, 20)
	got, ok := c.decodeHex("app_id_hash", hex.EncodeToString(want), 20)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDialTransport_RequiresSerialOrInOut(t *testing.T) {
	_, _, err := dialTransport("", 0, "", "")
	require.Error(t, err)
}

func TestDialTransport_OpensInAndOutAsAPipeTransport(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(inPath, []byte{0x2A}, 0o600))
	require.NoError(t, os.WriteFile(outPath, nil, 0o600))

	transport, closeFn, err := dialTransport("", 0, inPath, outPath)
	require.NoError(t, err)
	defer closeFn()

	b, err := transport.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), b)
}

func TestConsole_CmdList_PrintsEmptyStore(t *testing.T) {
	in := bytes.NewBuffer([]byte{byte(fidokey.StatusOK), 0x00})
	var out bytes.Buffer
	c := &console{transport: fidokey.NewPipeTransport(in, &out), out: &out}

	c.cmdList()

	outStr := out.String()
	assert.Contains(t, outStr, "count: 0")
}

func TestConsole_CmdReset_ReportsStatus(t *testing.T) {
	in := bytes.NewBuffer([]byte{byte(fidokey.StatusOK)})
	var out bytes.Buffer
	c := &console{transport: fidokey.NewPipeTransport(in, &out), out: &out}

	c.cmdReset()

	assert.Contains(t, out.String(), "status: 0")
}

func TestConsole_CmdRecent_WithoutAuditPathReportsUnconfigured(t *testing.T) {
	var out bytes.Buffer
	c := &console{out: &out}

	c.cmdRecent(nil)

	assert.Contains(t, out.String(), "no --audit-log")
}
