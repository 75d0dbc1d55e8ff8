package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/fhekit/internal/config"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/tui"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value is a built-in default.
	SourceDefault ConfigSource = "default"
	// SourceGlobal indicates the value came from global config.
	SourceGlobal ConfigSource = "global"
	// SourceProject indicates the value came from project config.
	SourceProject ConfigSource = "project"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceFlag indicates the value came from a command-line flag.
	SourceFlag ConfigSource = "flag"
)

// ConfigEntry is one effective configuration value with its source.
type ConfigEntry struct {
	Key    string       `json:"key"`
	Value  string       `json:"value"`
	Source ConfigSource `json:"source"`
}

// AddConfigCommand adds the config command group.
func AddConfigCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective fhekit configuration with source annotations.

Sources, highest precedence first:
  - flag: From a command-line flag
  - env: From an FHEKIT_* environment variable
  - project: From .fhekit/config.yaml
  - global: From ~/.fhekit/config.yaml
  - default: Built-in default value

Examples:
  fhekit config show
  fhekit config show -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			entries, err := annotateConfig(r.cfg, global)
			if err != nil {
				return err
			}
			if global.Output == OutputJSON {
				return r.out.JSON(entries)
			}
			printConfig(r.w, entries)
			return nil
		},
	})

	var initGlobal, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ProjectConfigPath()
			if initGlobal {
				var err error
				if path, err = config.GlobalConfigPath(); err != nil {
					return err
				}
			}
			if err := writeDefaultConfig(path, force); err != nil {
				return err
			}
			tui.NewOutput(cmd.OutOrStdout(), global.Output).Success("wrote " + path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write the global config instead of the project config")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	root.AddCommand(cmd)
}

// writeDefaultConfig writes DefaultConfig as YAML to path.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s already exists, pass --force to overwrite", errors.ErrInvalidArgument, path)
	}
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// annotateConfig flattens cfg into dotted keys and attributes each to the
// highest precedence layer that sets it.
func annotateConfig(cfg *config.Config, flags *GlobalFlags) ([]ConfigEntry, error) {
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var entries []ConfigEntry
	flattenNode(&node, "", func(key, value string) {
		entries = append(entries, ConfigEntry{Key: key, Value: value})
	})

	globalKeys := configFileKeys(globalConfigPath())
	projectPath := config.ProjectConfigPath()
	if flags.ConfigFile != "" {
		projectPath = flags.ConfigFile
	}
	projectKeys := configFileKeys(projectPath)
	flagKeys := flagConfigKeys(flags)

	for i := range entries {
		key := entries[i].Key
		switch {
		case flagKeys[key]:
			entries[i].Source = SourceFlag
		case os.Getenv(envKey(key)) != "":
			entries[i].Source = SourceEnv
		case projectKeys[key]:
			entries[i].Source = SourceProject
		case globalKeys[key]:
			entries[i].Source = SourceGlobal
		default:
			entries[i].Source = SourceDefault
		}
	}
	return entries, nil
}

// flattenNode walks a YAML mapping and calls fn for every leaf.
func flattenNode(n *yaml.Node, prefix string, fn func(key, value string)) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			flattenNode(c, prefix, fn)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			flattenNode(n.Content[i+1], key, fn)
		}
	case yaml.SequenceNode:
		items := make([]string, len(n.Content))
		for i, c := range n.Content {
			items[i] = c.Value
		}
		fn(prefix, "["+strings.Join(items, ", ")+"]")
	default:
		fn(prefix, n.Value)
	}
}

// configFileKeys returns the dotted keys set in the YAML file at path.
func configFileKeys(path string) map[string]bool {
	keys := make(map[string]bool)
	if path == "" {
		return keys
	}
	data, err := os.ReadFile(path) //nolint:gosec // Config file path
	if err != nil {
		return keys
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return keys
	}
	flattenNode(&node, "", func(key, _ string) { keys[key] = true })
	return keys
}

func globalConfigPath() string {
	path, err := config.GlobalConfigPath()
	if err != nil {
		return ""
	}
	return path
}

func flagConfigKeys(flags *GlobalFlags) map[string]bool {
	keys := make(map[string]bool)
	if flags.RelayURL != "" {
		keys["relay.url"] = true
	}
	if flags.RPCURL != "" {
		keys["chain.rpc_url"] = true
	}
	if flags.ChainID != 0 {
		keys["chain.chain_id"] = true
	}
	if flags.StorageBackend != "" {
		keys["storage.backend"] = true
	}
	if flags.WalletKey != "" {
		keys["wallet.key_path"] = true
	}
	return keys
}

func envKey(key string) string {
	return constants.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// printConfig renders entries grouped by section with colored sources.
func printConfig(w io.Writer, entries []ConfigEntry) {
	tui.CheckNoColor()
	header := lipgloss.NewStyle().Bold(true).Foreground(tui.ColorPrimary)
	section := lipgloss.NewStyle().Bold(true)
	key := lipgloss.NewStyle().Foreground(tui.ColorPrimary)
	dim := lipgloss.NewStyle().Foreground(tui.ColorMuted)
	sourceStyles := map[ConfigSource]lipgloss.Style{
		SourceFlag:    lipgloss.NewStyle().Foreground(tui.ColorError),
		SourceEnv:     lipgloss.NewStyle().Foreground(tui.ColorError),
		SourceProject: lipgloss.NewStyle().Foreground(tui.ColorWarning),
		SourceGlobal:  lipgloss.NewStyle().Foreground(tui.ColorSuccess),
		SourceDefault: dim,
	}

	_, _ = fmt.Fprintln(w, header.Render("Effective fhekit configuration"))
	_, _ = fmt.Fprintln(w, dim.Render("Sources: flag > env > project > global > default"))

	current := ""
	for _, e := range entries {
		sec, name, _ := strings.Cut(e.Key, ".")
		if sec != current {
			current = sec
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, section.Render(sec+":"))
		}
		value := e.Value
		if value == "" {
			value = `""`
		}
		_, _ = fmt.Fprintf(w, "  %s: %s  %s\n", key.Render(name), value, sourceStyles[e.Source].Render("# "+string(e.Source)))
	}
}
