package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
)

const testContract = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// setupHome isolates the CLI from the developer's real config and store.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("FHEKIT_HOME", home)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	return home
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "1.2.3", Commit: "abc"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	CloseLogFile()
	return out.String(), err
}

type decryptedJSON struct {
	Handle string `json:"handle"`
	Value  struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	} `json:"value"`
}

func TestCLI_EncryptDecryptFlow(t *testing.T) {
	home := setupHome(t)

	out, err := runCLI(t, "wallet", "init", "-o", "json")
	require.NoError(t, err)
	var w walletView
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.True(t, w.Created)
	assert.FileExists(t, filepath.Join(home, "wallet", "wallet.key"))

	out, err = runCLI(t, "encrypt", "--chain-id", "31337", "--contract", testContract,
		"--value", "bool:true", "--value", "u8:5", "--value", "u32:1000000", "-o", "json")
	require.NoError(t, err)
	var input domain.EncryptedInput
	require.NoError(t, json.Unmarshal([]byte(out), &input))
	require.Len(t, input.Handles, 3)
	assert.NotEmpty(t, input.InputProof)

	args := []string{"decrypt", "--chain-id", "31337", "--contract", testContract, "--yes", "-o", "json"}
	for _, h := range input.Handles {
		args = append(args, h.Hex())
	}
	out, err = runCLI(t, args...)
	require.NoError(t, err)
	var rows []decryptedJSON
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, true, rows[0].Value.Value)
	assert.Equal(t, "5", rows[1].Value.Value)
	assert.Equal(t, "1000000", rows[2].Value.Value)
	assert.Equal(t, "uint32", rows[2].Value.Type)

	out, err = runCLI(t, "signatures", "show", "--chain-id", "31337", "--contract", testContract, "-o", "json")
	require.NoError(t, err)
	var sig signatureView
	require.NoError(t, json.Unmarshal([]byte(out), &sig))
	assert.True(t, strings.EqualFold(w.Address, sig.User))
	assert.NotContains(t, out, "private")

	out, err = runCLI(t, "signatures", "invalidate", "--chain-id", "31337", "--contract", testContract)
	require.NoError(t, err)
	assert.Contains(t, out, "signature invalidated")

	out, err = runCLI(t, "signatures", "show", "--chain-id", "31337", "--contract", testContract)
	require.NoError(t, err)
	assert.Contains(t, out, "no valid signature")
}

func TestCLI_PublicDecrypt(t *testing.T) {
	setupHome(t)
	_, err := runCLI(t, "wallet", "init")
	require.NoError(t, err)

	out, err := runCLI(t, "encrypt", "--chain-id", "31337", "--contract", testContract, "--value", "u64:42", "-o", "json")
	require.NoError(t, err)
	var input domain.EncryptedInput
	require.NoError(t, json.Unmarshal([]byte(out), &input))
	handle := input.Handles[0].Hex() + "@" + testContract

	_, err = runCLI(t, "public-decrypt", "--chain-id", "31337", handle)
	require.ErrorIs(t, err, errors.ErrAccessDenied)

	_, err = runCLI(t, "mark-public", "--chain-id", "31337", input.Handles[0].Hex())
	require.NoError(t, err)

	out, err = runCLI(t, "public-decrypt", "--chain-id", "31337", handle)
	require.NoError(t, err)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "uint64")
}

func TestCLI_DecryptNeedsConfirmation(t *testing.T) {
	setupHome(t)
	_, err := runCLI(t, "wallet", "init")
	require.NoError(t, err)

	handle := domain.NewHandle(make([]byte, 32), 0, 31337, domain.TypeUint8).Hex()
	_, err = runCLI(t, "decrypt", "--chain-id", "31337", "--contract", testContract, handle)
	require.ErrorIs(t, err, errors.ErrInteractiveRequired)
}

func TestCLI_SignAndKeys(t *testing.T) {
	setupHome(t)
	_, err := runCLI(t, "wallet", "init")
	require.NoError(t, err)

	out, err := runCLI(t, "sign", "--chain-id", "31337", "--contract", testContract, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "expires")
	assert.Contains(t, out, strings.ToLower(testContract))

	out, err = runCLI(t, "keys", "fetch", "--chain-id", "31337", "-o", "json")
	require.NoError(t, err)
	var ks domain.PublicKeySet
	require.NoError(t, json.Unmarshal([]byte(out), &ks))
	assert.Equal(t, uint64(31337), ks.ChainID)
	assert.NotEmpty(t, ks.KeyID)
}

func TestCLI_Errors(t *testing.T) {
	setupHome(t)

	_, err := runCLI(t, "encrypt", "--chain-id", "31337", "--contract", testContract, "--value", "u8:5")
	require.ErrorIs(t, err, errors.ErrWalletKeyInvalid)

	_, err = runCLI(t, "wallet", "init")
	require.NoError(t, err)

	_, err = runCLI(t, "encrypt", "--chain-id", "31337", "--contract", testContract, "--value", "u8:256")
	require.ErrorIs(t, err, errors.ErrValueOutOfRange)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, err = runCLI(t, "encrypt", "--contract", testContract, "--value", "u8:1")
	require.ErrorIs(t, err, errors.ErrNoProvider)
	assert.Equal(t, ExitError, ExitCodeForError(err))

	_, err = runCLI(t, "version", "-o", "yaml")
	require.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
}

func TestCLI_WalletAddress(t *testing.T) {
	setupHome(t)
	out, err := runCLI(t, "wallet", "init", "-o", "json")
	require.NoError(t, err)
	var w walletView
	require.NoError(t, json.Unmarshal([]byte(out), &w))

	out, err = runCLI(t, "wallet", "address")
	require.NoError(t, err)
	assert.Equal(t, w.Address+"\n", out)

	out, err = runCLI(t, "wallet", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestCLI_Version(t *testing.T) {
	setupHome(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fhekit 1.2.3 (commit: abc, built: unknown)\n", out)

	out, err = runCLI(t, "version", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.2.3","commit":"abc","date":"unknown"}`, out)
}

func TestCLI_ConfigShowAndInit(t *testing.T) {
	home := setupHome(t)
	t.Setenv("FHEKIT_RELAY_URL", "http://relay.example:7077")

	out, err := runCLI(t, "config", "show", "--chain-id", "5", "-o", "json")
	require.NoError(t, err)
	var entries []ConfigEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	byKey := make(map[string]ConfigEntry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.Equal(t, ConfigEntry{Key: "chain.chain_id", Value: "5", Source: SourceFlag}, byKey["chain.chain_id"])
	assert.Equal(t, SourceEnv, byKey["relay.url"].Source)
	assert.Equal(t, "http://relay.example:7077", byKey["relay.url"].Value)
	assert.Equal(t, SourceDefault, byKey["storage.backend"].Source)
	assert.Equal(t, "[31337]", byKey["chain.mock_chain_ids"].Value)

	_, err = runCLI(t, "config", "init", "--global")
	require.NoError(t, err)
	path := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "duration_days: 365")

	_, err = runCLI(t, "config", "init", "--global")
	require.ErrorIs(t, err, errors.ErrInvalidArgument)

	out, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "duration_days: 365  # global")
}
