package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/roomlink/roomlink/internal/config"
	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/ui"
	"github.com/roomlink/roomlink/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagAPI     string
	flagProxy   string
	flagTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "roomlink",
	Short:   "Create, find and join multiplayer rooms through a relay proxy",
	Long:    `roomlink talks to a room directory API to create and search game rooms, and joins a room by tunnelling its traffic over a WebSocket relay proxy.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		APIURL:   flagAPI,
		ProxyURL: flagProxy,
		Timeout:  flagTimeout,
	})
}

func newDirectory(cfg *config.Config) *directory.Client {
	return directory.New(cfg.APIURL,
		directory.WithTimeout(cfg.Timeout),
		directory.WithLogger(componentLogger("directory")),
	)
}

func componentLogger(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", "", "Room directory API base URL")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "Relay proxy WebSocket URL")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Directory request timeout")
}
