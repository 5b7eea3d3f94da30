package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tusharsadhwani/zigself/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "zigself-heapbench",
	Short: "Drive and inspect the zigself managed heap",
	Long:  "zigself-heapbench runs synthetic allocation scenarios against the managed heap and reports collection behavior.",
}

// main wires the heap benchmark subcommands onto the root command and
// runs whichever one the user invoked. A non-nil error from execution
// exits the process with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(verifyCmd)

	rootCmd.PersistentFlags().String("color", "auto", "color mode (auto|on|off); accepted but not read by any subcommand")
	rootCmd.PersistentFlags().Bool("quiet", false, "quiet mode; accepted but not read by any subcommand")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
