package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-intel/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"batch", "process", "approve", "reject", "status", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "proposal-intel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBatchCommand_HasSubcommands(t *testing.T) {
	cmds := batchCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"create", "start"} {
		assert.True(t, names[name], "batch should have subcommand %q", name)
	}
}

func TestBatchStartCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"batch", "name", "from", "to"} {
		flag := batchStartCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "batch start should have --%s flag", flagName)
	}
}

func TestParseDateFlag(t *testing.T) {
	require.NoError(t, batchStartCmd.Flags().Set("from", "2025-03-14"))
	t.Cleanup(func() { _ = batchStartCmd.Flags().Set("from", "") })

	got, err := parseDateFlag(batchStartCmd, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), got)

	empty, err := parseDateFlag(batchStartCmd, "to")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestParseDateFlag_Invalid(t *testing.T) {
	require.NoError(t, batchStartCmd.Flags().Set("from", "03/14/2025"))
	t.Cleanup(func() { _ = batchStartCmd.Flags().Set("from", "") })

	_, err := parseDateFlag(batchStartCmd, "from")
	assert.Error(t, err)
}

func TestLoadEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.json")
	payload, err := json.Marshal(model.ExtractedQuoteData{TotalPrice: 725, ClientName: "Jordan Blake"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0644))

	require.NoError(t, approveCmd.Flags().Set("edits", path))
	t.Cleanup(func() { _ = approveCmd.Flags().Set("edits", "") })

	edits, err := loadEdits(approveCmd)
	require.NoError(t, err)
	require.NotNil(t, edits)
	assert.Equal(t, 725.0, edits.TotalPrice)
	assert.Equal(t, "Jordan Blake", edits.ClientName)
}

func TestLoadEdits_NoFlag(t *testing.T) {
	edits, err := loadEdits(rejectCmd)
	require.NoError(t, err)
	assert.Nil(t, edits)
}

func TestLoadEdits_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	require.NoError(t, approveCmd.Flags().Set("edits", path))
	t.Cleanup(func() { _ = approveCmd.Flags().Set("edits", "") })

	_, err := loadEdits(approveCmd)
	assert.Error(t, err)
}
