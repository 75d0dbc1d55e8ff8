package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMenuConfig(t *testing.T) {
	cfg := NewMenuConfig()
	assert.Equal(t, DefaultBoxWidth, cfg.Width)
	assert.True(t, cfg.ShowKeyHints)
}

func TestNewMenuConfig_Accessible(t *testing.T) {
	t.Setenv("ACCESSIBLE", "1")
	assert.True(t, NewMenuConfig().Accessible)
}

func TestAdaptWidth_NoTerminal(t *testing.T) {
	// go test runs without a terminal on stdout
	assert.Equal(t, 60, adaptWidth(60))
	assert.Equal(t, DefaultBoxWidth, adaptWidth(0))
}

func TestConfirm_NoTerminal(t *testing.T) {
	ok, err := ConfirmSigning(context.Background(), "Sign?", "Chain: 31337")
	require.ErrorIs(t, err, ErrMenuCanceled)
	assert.False(t, ok)
}

func TestTheme(t *testing.T) {
	assert.NotNil(t, Theme())
}
