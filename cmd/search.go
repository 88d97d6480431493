package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagSearchName    string
	flagSearchVersion string
	flagSearchOutput  string
)

var searchCmd = &cobra.Command{
	Use:     "search",
	Aliases: []string{"s", "ls"},
	Short:   "List rooms for an application",
	Long: `List the rooms the directory knows for an application name and version.

Examples:
  roomlink search --name pong --version 1.0
  roomlink search --name pong --version 1.0 -o text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return searchRooms(cmd.Context(), directory.SearchRequest{
			ApplicationName: flagSearchName,
			Version:         flagSearchVersion,
		})
	},
}

func searchRooms(ctx context.Context, req directory.SearchRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stopSpinner := spinnerFor(flagSearchOutput, "Searching rooms...", ui.RunConnectionSpinner)
	defer stopSpinner()
	rooms, err := newDirectory(cfg).Search(ctx, req)
	if err != nil {
		return err
	}
	stopSpinner()

	if len(rooms) == 0 && !machineReadable(flagSearchOutput) {
		ui.PrintWarning(fmt.Sprintf("No rooms found for %s %s", req.ApplicationName, req.Version))
		return nil
	}
	if err := writeRooms(os.Stdout, rooms, flagSearchOutput); err != nil {
		return fmt.Errorf("print rooms: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&flagSearchName, "name", "n", "", "Application name")
	searchCmd.Flags().StringVarP(&flagSearchVersion, "version", "v", "", "Application version")
	searchCmd.Flags().StringVarP(&flagSearchOutput, "output", "o", formatTable, "Output format: table, text, json, msgpack")
	searchCmd.MarkFlagRequired("name")
	searchCmd.MarkFlagRequired("version")
}
