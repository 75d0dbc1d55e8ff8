package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	fherrors "github.com/mrz1836/fhekit/internal/errors"
)

// Terminal layout constants.
const (
	// TerminalEdgeMargin is the number of characters left between prompt
	// content and the terminal edge.
	TerminalEdgeMargin = 4

	// MinMenuWidth is the minimum usable prompt width.
	MinMenuWidth = 40
)

// ErrMenuCanceled is returned when the user cancels a prompt or no terminal
// is attached.
var ErrMenuCanceled = fherrors.ErrMenuCanceled

// MenuConfig holds prompt configuration.
type MenuConfig struct {
	// Width is the maximum prompt width. If 0, adapts to the terminal.
	Width int
	// Accessible enables huh's screen reader mode.
	Accessible bool
	// ShowKeyHints controls whether key hints are displayed.
	ShowKeyHints bool
}

// NewMenuConfig returns the default configuration. Accessible mode follows
// the ACCESSIBLE environment variable.
func NewMenuConfig() *MenuConfig {
	_, accessible := os.LookupEnv("ACCESSIBLE")
	return &MenuConfig{
		Width:        DefaultBoxWidth,
		Accessible:   accessible,
		ShowKeyHints: true,
	}
}

// adaptWidth returns maxWidth clamped to the terminal width.
func adaptWidth(maxWidth int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		if maxWidth <= 0 {
			return DefaultBoxWidth
		}
		return maxWidth
	}

	available := width - TerminalEdgeMargin
	if maxWidth > 0 && maxWidth < available {
		return maxWidth
	}
	if available < MinMenuWidth {
		return MinMenuWidth
	}
	return available
}

// runFormWithConfig runs a single-field form. It returns ErrMenuCanceled
// without prompting when stdin is not a terminal.
func runFormWithConfig(ctx context.Context, field huh.Field, cfg *MenuConfig, errorContext string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ErrMenuCanceled
	}

	CheckNoColor()

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(Theme()).
		WithWidth(adaptWidth(cfg.Width)).
		WithAccessible(cfg.Accessible).
		WithShowHelp(cfg.ShowKeyHints)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrMenuCanceled
		}
		return fmt.Errorf("%s: %w", errorContext, err)
	}
	return nil
}

// Theme returns the huh theme in fhekit colors.
func Theme() *huh.Theme {
	CheckNoColor()

	t := huh.ThemeBase()
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Blurred.Base = t.Blurred.Base.BorderForeground(ColorMuted)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorMuted)
	t.Help.Ellipsis = t.Help.Ellipsis.Foreground(ColorMuted)
	return t
}

// Confirm asks a yes/no question. defaultYes preselects Yes.
func Confirm(ctx context.Context, title, description string, defaultYes bool) (bool, error) {
	return ConfirmWithConfig(ctx, title, description, defaultYes, NewMenuConfig())
}

// ConfirmWithConfig is Confirm with a custom configuration.
func ConfirmWithConfig(ctx context.Context, title, description string, defaultYes bool, cfg *MenuConfig) (bool, error) {
	confirmed := defaultYes

	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Sign").
		Negative("Cancel").
		Value(&confirmed)

	if err := runFormWithConfig(ctx, field, cfg, "confirm prompt failed"); err != nil {
		return false, err
	}
	return confirmed, nil
}

// ConfirmSigning asks the user to approve a wallet signing request. Its
// signature matches wallet.ConfirmFunc.
func ConfirmSigning(ctx context.Context, title, description string) (bool, error) {
	return Confirm(ctx, title, description, false)
}
