package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCompileArgs(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestCompileUpdate(t *testing.T) {
	buf, err := runCompileArgs(t, "text",
		"--table", "lanatus_player",
		"--add", "melons_count=5",
		"--set", "last_rank=vip",
		"--where", "player_id=abc",
	)
	require.NoError(t, err)

	output := buf.String()
	// --set columns come before --add columns
	assert.Contains(t, output, "UPDATE lanatus_player SET last_rank=?, melons_count=melons_count+? WHERE player_id=?")
	assert.Contains(t, output, `$1 = "vip"`)
	assert.Contains(t, output, `$2 = 5`)
	assert.Contains(t, output, `$3 = "abc"`)
}

func TestCompileUpdateJSON(t *testing.T) {
	buf, err := runCompileArgs(t, "json",
		"--table", "lanatus_player",
		"--set", "last_rank=vip",
		"--where", "player_id=abc",
		"--where-not", "last_rank=banned",
	)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "UPDATE", resp.Data.Op)
	assert.Equal(t, "UPDATE lanatus_player SET last_rank=? WHERE player_id=? AND last_rank!=?", resp.Data.SQL)
	assert.Equal(t, []any{"vip", "abc", "banned"}, resp.Data.Params)
	assert.False(t, resp.Data.ReturnKeys)
}

func TestCompileInsert(t *testing.T) {
	buf, err := runCompileArgs(t, "text",
		"--table", "lanatus_melon_ledger",
		"--insert",
		"--set", "player_id=abc",
		"--set", "melons_delta=5",
	)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "INSERT INTO lanatus_melon_ledger (player_id, melons_delta) VALUES (?, ?)")
	assert.Contains(t, output, "returns generated keys")
}

func TestCompileNothingToWrite(t *testing.T) {
	buf, err := runCompileArgs(t, "text", "--table", "lanatus_player", "--where", "player_id=abc")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "nothing to write")
}

func TestCompileUnscopedUpdate(t *testing.T) {
	_, err := runCompileArgs(t, "text", "--table", "lanatus_player", "--set", "last_rank=vip")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "USAGE", ErrorCode(err))
}

func TestCompileInvalidAssignment(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing equals", []string{"--table", "t", "--set", "last_rank", "--where", "id=1"}},
		{"empty column", []string{"--table", "t", "--set", "=x", "--where", "id=1"}},
		{"non-integer delta", []string{"--table", "t", "--add", "n=many", "--where", "id=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCompileArgs(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestCompileInvalidIdentifier(t *testing.T) {
	_, err := runCompileArgs(t, "text", "--table", "players; DROP TABLE x", "--set", "a=1", "--where", "id=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
