package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/portablefs/mtpkit/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "mtpkit",
	Short: "Browse and transfer files on MTP devices",
	Long:  "mtpkit lists attached MTP devices and copies files to and from them without mounting",
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(
		app.NewDevicesCommand(),
		app.NewLsCommand(),
		app.NewTreeCommand(),
		app.NewPullCommand(),
		app.NewPushCommand(),
		app.NewMkdirCommand(),
		app.NewRmCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
