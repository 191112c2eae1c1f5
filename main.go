package main

import (
	"fmt"
	"log"
	"os"

	"github.com/colsign/colsign-go/cmd"
	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/logging"
)

// version and buildDate are set at build time through ldflags
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
