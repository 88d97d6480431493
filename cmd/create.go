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
	flagCreateName     string
	flagCreateVersion  string
	flagCreatePassword string
	flagCreateMaxUser  int
	flagCreateInfo     map[string]string
	flagCreateOutput   string
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room",
	Long: `Create a room in the directory and print its descriptor.

Examples:
  roomlink create --name pong --version 1.0
  roomlink create --name pong --version 1.0 --password secret --max-user 4
  roomlink create --name pong --version 1.0 --info map=arena -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRoom(cmd.Context(), directory.CreateRequest{
			ApplicationName: flagCreateName,
			Version:         flagCreateVersion,
			Password:        flagCreatePassword,
			MaxUser:         flagCreateMaxUser,
			Information:     flagCreateInfo,
		})
	},
}

func createRoom(ctx context.Context, req directory.CreateRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stopSpinner := spinnerFor(flagCreateOutput, "Creating room...", ui.RunSpinner)
	defer stopSpinner()
	room, err := newDirectory(cfg).Create(ctx, req)
	if err != nil {
		return err
	}
	stopSpinner()

	if !machineReadable(flagCreateOutput) {
		ui.PrintSuccessf("Room %s created", room.ID())
	}
	if err := writeRoom(os.Stdout, room, flagCreateOutput); err != nil {
		return fmt.Errorf("print room: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&flagCreateName, "name", "n", "", "Application name")
	createCmd.Flags().StringVarP(&flagCreateVersion, "version", "v", "", "Application version")
	createCmd.Flags().StringVarP(&flagCreatePassword, "password", "p", "", "Room password")
	createCmd.Flags().IntVarP(&flagCreateMaxUser, "max-user", "m", 0, "Maximum number of players")
	createCmd.Flags().StringToStringVarP(&flagCreateInfo, "info", "i", nil, "Extra room information (key=value)")
	createCmd.Flags().StringVarP(&flagCreateOutput, "output", "o", formatBox, "Output format: box, json, msgpack")
	createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagRequired("version")
}
