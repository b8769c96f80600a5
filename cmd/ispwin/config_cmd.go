package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/ispwin/ispwin/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ispwin configuration",
		Long:  `Manage the ispwin configuration file`,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print configuration file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := resolveConfigPath()
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Edit configuration in $EDITOR",
			Long: `Open the ispwin configuration file in your default editor

The editor is determined by checking $EDITOR, $VISUAL, or common editors
like vim, vi, nano, and emacs in that order.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return editConfigFile()
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset configuration to defaults",
			Long: `Reset the ispwin configuration file to default settings

This overwrites the existing file. You will be asked to confirm.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return resetConfigToDefaults()
			},
		},
	)
	return configCmd
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "", fmt.Errorf("could not determine config path: %w", err)
	}
	return path, nil
}

func editConfigFile() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Config file doesn't exist, creating default at: %s\n", path)
		if err := config.WriteConfig(path, config.DefaultConfig()); err != nil {
			return fmt.Errorf("could not create config file: %w", err)
		}
	}

	editor := findEditor()
	if editor == "" {
		return errors.New("no editor found, please set $EDITOR")
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}

	if _, err := config.LoadUserConfigFrom(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return nil
}

func findEditor() string {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	for _, e := range []string{"vim", "vi", "nano", "emacs"} {
		if _, err := exec.LookPath(e); err == nil {
			return e
		}
	}
	return ""
}

func resetConfigToDefaults() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Warning: This will overwrite your existing configuration at:\n")
		fmt.Printf("  %s\n\n", path)
		fmt.Printf("Are you sure you want to reset to defaults? (yes/no): ")

		var response string
		_, _ = fmt.Scanln(&response)
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "yes" && response != "y" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	if err := config.WriteConfig(path, config.DefaultConfig()); err != nil {
		return err
	}

	fmt.Printf("Configuration reset to defaults\n")
	fmt.Printf("  Location: %s\n", path)
	fmt.Println("\nYou can customize it with: ispwin config edit")
	return nil
}

func newKeybindsCmd() *cobra.Command {
	keybindsCmd := &cobra.Command{
		Use:     "keybinds",
		Aliases: []string{"keys", "kb"},
		Short:   "Show keybindings",
	}

	keybindsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all keybindings",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				fmt.Println(renderKeybindings(config.NewKeybindRegistry(cfg)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list-custom",
			Short: "List keybindings that differ from the defaults",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				custom := findCustomizations(cfg, config.DefaultConfig())
				if len(custom) == 0 {
					fmt.Println("No customized keybindings.")
					return nil
				}
				fmt.Println(renderCustomizations(custom))
				return nil
			},
		},
	)
	return keybindsCmd
}

var (
	kbHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Padding(0, 1)
	kbCellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func keyTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return kbHeaderStyle
			}
			return kbCellStyle
		})
}

// renderKeybindings renders every section of the registry, one table each.
func renderKeybindings(r *config.KeybindRegistry) string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Render("ispwin keybindings"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Prefix: %s, then one of the keys below.\n\n", r.Prefix()))

	for _, section := range config.ActionSections {
		rows := make([][]string, 0, len(section.Actions))
		for _, action := range section.Actions {
			rows = append(rows, []string{config.ActionDescriptions[action], r.GetKeysForDisplay(action)})
		}
		sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Render(section.Title))
		sb.WriteString("\n")
		sb.WriteString(keyTable([]string{"Action", "Keys"}, rows).Render())
		sb.WriteString("\n\n")
	}

	sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true).
		Render("Keys can be changed under [keybindings.desktop] in the config file."))
	return sb.String()
}

// Customization is a keybinding that differs from its default.
type Customization struct {
	Action      string
	DefaultKeys string
	CustomKeys  string
}

// findCustomizations lists the actions whose keys differ from defaultCfg,
// in display order.
func findCustomizations(userCfg, defaultCfg *config.UserConfig) []Customization {
	var out []Customization
	for _, section := range config.ActionSections {
		for _, action := range section.Actions {
			userKeys, ok := userCfg.Keybindings.Desktop[action]
			if !ok {
				continue
			}
			defaultKeys := defaultCfg.Keybindings.Desktop[action]
			if slices.Equal(userKeys, defaultKeys) {
				continue
			}
			out = append(out, Customization{
				Action:      formatActionName(action),
				DefaultKeys: strings.Join(defaultKeys, ", "),
				CustomKeys:  strings.Join(userKeys, ", "),
			})
		}
	}
	if userCfg.Keybindings.Prefix != defaultCfg.Keybindings.Prefix {
		out = append(out, Customization{
			Action:      "Prefix",
			DefaultKeys: defaultCfg.Keybindings.Prefix,
			CustomKeys:  userCfg.Keybindings.Prefix,
		})
	}
	return out
}

func renderCustomizations(custom []Customization) string {
	rows := make([][]string, 0, len(custom))
	for _, c := range custom {
		rows = append(rows, []string{c.Action, c.DefaultKeys, c.CustomKeys})
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Render("Custom Keybindings")
	note := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).
		Render(fmt.Sprintf("Found %d customized keybinding(s)", len(custom)))
	return lipgloss.JoinVertical(lipgloss.Left, title, "", keyTable([]string{"Action", "Default", "Custom"}, rows).Render(), "", note)
}

// formatActionName prefers the action's description.
func formatActionName(action string) string {
	if desc, ok := config.ActionDescriptions[action]; ok {
		return desc
	}
	return strings.ReplaceAll(action, "_", " ")
}
