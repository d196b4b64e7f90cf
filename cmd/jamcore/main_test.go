package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/testutils"
	"github.com/eigerco/jamcore/internal/testutils/fixtures"
)

func writeBlock(t *testing.T, dir, name string, b block.Block) string {
	raw, err := b.Bytes()
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"jamcore"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	b := fixtures.NewBlock(t, 98, testutils.RandomHash(t), testutils.RandomHash(t))
	b.Extrinsic.Guarantees = []block.Payload{
		fixtures.Guarantee(t, 90, 3, fixtures.Uint64(10), fixtures.Result{AccumulateGas: 20}),
	}
	fixtures.Commit(t, &b)
	path := writeBlock(t, dir, "block.json", b)
	metricsPath := filepath.Join(dir, "jamcore.prom")

	code, stdout, stderr := runCLI(t, "import", "--log-format", "json", "--metrics-file", metricsPath, path)
	require.Equal(t, 0, code, stderr)

	var out summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, uint32(98), out.Slot)
	assert.Equal(t, b.Header.ExtrinsicHash, out.ExtrinsicHash)
	assert.Equal(t, uint64(30), out.CoreTime.TotalAllocated)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "jamcore_blocks_imported_total 1")
}

func TestImportCommand_Failures(t *testing.T) {
	dir := t.TempDir()

	bad := fixtures.NewBlock(t, 5, testutils.RandomHash(t), testutils.RandomHash(t))
	bad.Header.ExtrinsicHash = testutils.RandomHash(t)
	badPath := writeBlock(t, dir, "bad.json", bad)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{ not json"), 0o600))

	tests := []struct {
		name string
		args []string
		kind string
	}{
		{"missing argument", []string{"import"}, "error"},
		{"missing file", []string{"import", filepath.Join(dir, "missing.json")}, "[IO]"},
		{"undecodable file", []string{"import", garbage}, "[Decode]"},
		{"invalid block", []string{"import", "-v", badPath}, "[InvalidInclusionProof]"},
		{"bad anchor", []string{"import", "--anchor-hash", "0x00", "--anchor-state-root", "0x00", badPath}, "anchor-hash"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tc.args...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tc.kind)
		})
	}
}

func TestImportCommand_ResumesFromStore(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")

	b1 := fixtures.NewBlock(t, 1, testutils.RandomHash(t), testutils.RandomHash(t))
	fixtures.AddTickets(t, &b1, 1)
	b2 := fixtures.Next(t, b1, 2)
	fixtures.AddPreimage(t, &b2, 9, []byte("blob"))
	stale := fixtures.NewBlock(t, 3, testutils.RandomHash(t), b1.Header.ParentStateRoot)

	code, _, stderr := runCLI(t, "import", "--db", dbDir, writeBlock(t, dir, "b1.json", b1))
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI(t, "import", "--db", dbDir, writeBlock(t, dir, "b2.json", b2))
	require.Equal(t, 0, code, stderr)

	var out summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, uint64(2), out.State.Counter)
	assert.Equal(t, uint64(1), out.State.Tickets.ValidTickets)

	code, _, stderr = runCLI(t, "import", "--db", dbDir, writeBlock(t, dir, "stale.json", stale))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "[ParentHashMismatch]")

	code, stdout, stderr = runCLI(t, "blocks", "--db", dbDir)
	require.Equal(t, 0, code, stderr)

	var listed []storedBlock
	dec := json.NewDecoder(strings.NewReader(stdout))
	for dec.More() {
		var sb storedBlock
		require.NoError(t, dec.Decode(&sb))
		listed = append(listed, sb)
	}
	assert.Equal(t, []storedBlock{
		{Slot: 1, ExtrinsicHash: b1.Header.ExtrinsicHash, Parent: b1.Header.Parent},
		{Slot: 2, ExtrinsicHash: b2.Header.ExtrinsicHash, Parent: b2.Header.Parent},
	}, listed)
}

func TestBlocksCommand_RequiresStore(t *testing.T) {
	code, stdout, stderr := runCLI(t, "blocks")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "--db is required")
}

func TestImportCommand_Config(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jamcore.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[header]\nrequire_offenders = true\n"), 0o600))

	b := fixtures.NewBlock(t, 1, testutils.RandomHash(t), testutils.RandomHash(t))
	path := writeBlock(t, dir, "block.json", b)

	code, _, stderr := runCLI(t, "import", "--config", cfgPath, path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "[InvalidBlockStructure]")

	code, _, stderr = runCLI(t, "import", path)
	assert.Equal(t, 0, code, stderr)
}

func TestImportCommand_Anchor(t *testing.T) {
	dir := t.TempDir()
	parent := testutils.RandomHash(t)
	root := testutils.RandomHash(t)
	path := writeBlock(t, dir, "block.json", fixtures.NewBlock(t, 1, parent, root))

	code, _, stderr := runCLI(t, "import", "--anchor-hash", testutils.RandomHash(t).String(), "--anchor-state-root", root.String(), path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "[ParentHashMismatch]")

	code, _, stderr = runCLI(t, "import", "--anchor-hash", parent.String(), "--anchor-state-root", root.String(), path)
	assert.Equal(t, 0, code, stderr)
}
