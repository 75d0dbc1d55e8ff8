package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/mrz1836/fhekit/internal/errors"
)

func TestNewOutput(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &JSONOutput{}, NewOutput(&buf, "json"))
	assert.IsType(t, &TTYOutput{}, NewOutput(&buf, "text"))
	assert.IsType(t, &TTYOutput{}, NewOutput(&buf, ""))
}

func TestTTYOutput_Messages(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Success("signed")
	out.Warning("expires soon")
	out.Info("chain 31337")

	got := buf.String()
	assert.Contains(t, got, "✓ signed")
	assert.Contains(t, got, "⚠ expires soon")
	assert.Contains(t, got, "ℹ chain 31337")
}

func TestTTYOutput_ErrorWithAction(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Error(fmt.Errorf("decrypt: %w", fherrors.ErrSignatureExpired))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "The decryption signature has expired.")
	assert.Contains(t, lines[0], "decrypt: decryption signature expired")
	assert.Contains(t, lines[1], "▸ Try: Run 'fhekit sign'")
}

func TestTTYOutput_ErrorPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	NewTTYOutput(&buf).Error(fmt.Errorf("something odd")) //nolint:err113 // test error

	assert.Equal(t, "✗ something odd\n", buf.String())
}

func TestTTYOutput_Table(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Table([]string{"Handle", "Value"}, [][]string{
		{"0x01", "true"},
		{"0x02", "1000000"},
		{"0x03"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Handle  Value", lines[0])
	assert.Equal(t, "0x01    true", lines[1])
	assert.Equal(t, "0x02    1000000", lines[2])
	assert.Equal(t, "0x03", lines[3])

	buf.Reset()
	out.Table(nil, [][]string{{"x"}})
	assert.Empty(t, buf.String())
}

func TestJSONOutput_Messages(t *testing.T) {
	var buf bytes.Buffer
	out := NewJSONOutput(&buf)

	out.Success("done")
	out.Info("hi")

	dec := json.NewDecoder(&buf)
	var msg map[string]string
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, map[string]string{"type": "success", "message": "done"}, msg)
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, "info", msg["type"])
}

func TestJSONOutput_Error(t *testing.T) {
	var buf bytes.Buffer
	NewJSONOutput(&buf).Error(fherrors.Wrap(fherrors.ErrAccessDenied, "0x01"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, "The relay refused to disclose the value.", got["message"])
	assert.Equal(t, "0x01: access denied", got["details"])
	assert.NotEmpty(t, got["suggestion"])
}

func TestJSONOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	NewJSONOutput(&buf).Table([]string{"handle", "value"}, [][]string{{"0x01", "5"}, {"0x02"}})

	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]string{
		{"handle": "0x01", "value": "5"},
		{"handle": "0x02", "value": ""},
	}, got)
}
