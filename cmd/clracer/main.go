// Package main implements the clracer CLI.
//
// clracer replays recorded kernel event traces through the data-race
// detector:
//
//	clracer check trace.yaml     # Replay a trace, report races
//	clracer version              # Show version information
//
// A trace is the YAML serialization of the event stream an interpreter
// would deliver live; see internal/clrace/trace for the schema.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kolkov/clracer/clrace"
)

// Version is set at link time (-ldflags "-X main.Version=..."); it is empty
// for a plain "go build" or "go install".
var Version string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "clracer",
	Short: "A data-race detector for simulated OpenCL kernels.",
	Run: func(cmd *cobra.Command, _ []string) {
		if version, _ := cmd.Flags().GetBool("version"); version {
			printVersion()

			return
		}

		_ = cmd.Help()
	},
}

// versionCmd reports the same information as the root --version flag.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information.",
	Run: func(*cobra.Command, []string) {
		printVersion()
	},
}

func printVersion() {
	fmt.Print("clracer ")

	switch {
	case Version != "":
		// Set at link time
		fmt.Print(Version)
	default:
		if info, ok := debug.ReadBuildInfo(); ok {
			// Built via "go install"
			fmt.Print(info.Main.Version)
		} else {
			// Unknown, perhaps "go run"
			fmt.Printf("(unknown version, detector %s)", clrace.Version)
		}
	}

	fmt.Println()
}

func init() {
	rootCmd.Flags().Bool("version", false, "Report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(func() {
		if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
			log.SetLevel(log.DebugLevel)
		}
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
