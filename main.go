package main

import (
	"github.com/roomlink/roomlink/cmd"
	"github.com/roomlink/roomlink/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
