package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/relay"
	"github.com/roomlink/roomlink/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagConnectName     string
	flagConnectVersion  string
	flagConnectID       string
	flagConnectPassword string
	flagConnectBinary   bool
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	Aliases: []string{"join", "j"},
	Short:   "Join a room and relay messages through the proxy",
	Long: `Find a room in the directory and open a relay session to it.
Every line you type is sent as one frame; frames from the room are printed.

Examples:
  roomlink connect --name pong --version 1.0
  roomlink connect --name pong --version 1.0 --id 42 --password secret
  roomlink connect --name pong --version 1.0 --proxy wss://proxy.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return connectRoom(cmd.Context())
	},
}

func connectRoom(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sp := ui.NewConnectionSpinner("Looking up room...")
	sp.Start()
	defer sp.Stop()
	rooms, err := newDirectory(cfg).Search(ctx, directory.SearchRequest{
		ApplicationName: flagConnectName,
		Version:         flagConnectVersion,
	})
	if err != nil {
		return err
	}

	room, err := pickRoom(rooms, flagConnectID)
	if err != nil {
		return err
	}
	sp.Success(fmt.Sprintf("Found room %s on %s", room.ID(), roomItem(1, room).Server))

	// listed rooms never carry the caller's password
	if flagConnectPassword != "" {
		room.Password = flagConnectPassword
	} else if locked(room) {
		ui.PrintWarning("Room is password protected, pass --password to join")
	}

	opts := []relay.Option{relay.WithLogger(componentLogger("relay"))}
	if flagConnectBinary {
		opts = append(opts, relay.WithBinaryFrames())
	}
	conn := relay.NewConn(cfg.ProxyURL, opts...)

	title := fmt.Sprintf("%s %s · room %s", room.ApplicationName, room.Version, room.ID())
	model := ui.NewSessionModel(title, conn.Send)
	program := tea.NewProgram(model)

	conn.OnConnect(func() {
		program.Send(ui.ConnectedMsg{BackendURL: conn.BackendURL()})
	})
	conn.OnReceive(func(data []byte) {
		program.Send(ui.ReceivedMsg{Data: data})
	})
	conn.OnClose(func(err error) {
		program.Send(ui.ClosedMsg{Err: err})
	})

	ui.PrintInfof("Relaying through %s", cfg.ProxyURL)
	if err := runSession(ctx, conn, room, program); err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	if err := model.Err(); err != nil {
		return err
	}
	ui.PrintInfo("Left room " + room.ID())
	return nil
}

// sessionProgram is the part of a tea.Program a relay session drives.
type sessionProgram interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
}

// runSession connects in the background while program runs. Once program
// exits the dial is abandoned and any open socket is closed.
func runSession(ctx context.Context, conn *relay.Conn, room *directory.Room, program sessionProgram) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connected := make(chan struct{})
	go func() {
		defer close(connected)
		if err := conn.Connect(ctx, room); err != nil && ctx.Err() == nil {
			program.Send(ui.ClosedMsg{Err: err})
		}
	}()

	_, err := program.Run()
	cancel()
	<-connected
	conn.Close()
	return err
}

// pickRoom selects the room with the given id, or the first room when id
// is empty.
func pickRoom(rooms []*directory.Room, id string) (*directory.Room, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("no rooms found for %s %s", flagConnectName, flagConnectVersion)
	}
	if id == "" {
		return rooms[0], nil
	}
	for _, room := range rooms {
		if room.ID() == id {
			return room, nil
		}
	}
	return nil, fmt.Errorf("room %s not found", id)
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&flagConnectName, "name", "n", "", "Application name")
	connectCmd.Flags().StringVarP(&flagConnectVersion, "version", "v", "", "Application version")
	connectCmd.Flags().StringVar(&flagConnectID, "id", "", "Room ID (defaults to the first room found)")
	connectCmd.Flags().StringVarP(&flagConnectPassword, "password", "p", "", "Room password")
	connectCmd.Flags().BoolVarP(&flagConnectBinary, "binary", "b", false, "Send binary frames instead of text")
	connectCmd.MarkFlagRequired("name")
	connectCmd.MarkFlagRequired("version")
}
