package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/ispwin/ispwin/internal/storage"
	"github.com/ispwin/ispwin/internal/vfs"
)

// withFS opens the configured store and runs fn on the file system kept in it.
func withFS(fn func(*vfs.FS) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.StorageDir())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	return fn(vfs.New(store))
}

func newFSCmd() *cobra.Command {
	fsCmd := &cobra.Command{
		Use:   "fs",
		Short: "Inspect and edit the desktop file system",
		Long: `Inspect and edit the desktop file system

Works directly on the store, so running desktops pick up changes the next
time they load a file.`,
	}

	lsCmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) > 0 {
				path = args[0]
			}
			return withFS(func(fs *vfs.FS) error {
				entries, err := fs.List(path)
				if err != nil {
					return err
				}
				fmt.Println(renderEntries(path, entries))
				return nil
			})
		},
	}

	catCmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(func(fs *vfs.FS) error {
				content, err := fs.ReadFile(args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), content)
				return err
			})
		},
	}

	writeCmd := &cobra.Command{
		Use:   "write <path> [content]",
		Short: "Write a file, reading stdin when no content is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			if len(args) > 1 {
				content = args[1]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				content = string(data)
			}
			return withFS(func(fs *vfs.FS) error {
				return fs.WriteFile(args[0], content)
			})
		},
	}

	mkdirCmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(func(fs *vfs.FS) error {
				return fs.Mkdir(args[0])
			})
		},
	}

	fsCmd.AddCommand(lsCmd, catCmd, writeCmd, mkdirCmd)
	return fsCmd
}

// renderEntries renders a folder listing as a table.
func renderEntries(path string, entries []vfs.Entry) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	folderStyle := cellStyle.Foreground(lipgloss.Color("14"))

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		size := ""
		if e.Type == vfs.TypeFile {
			size = strconv.Itoa(len(e.Content))
		}
		rows = append(rows, []string{e.Name, string(e.Type), size})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Name", "Type", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 && rows[row][1] == string(vfs.TypeFolder) {
				return folderStyle
			}
			return cellStyle
		})

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Render(path)
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}
