package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kolkov/clracer/internal/clrace/detector"
	"github.com/kolkov/clracer/internal/clrace/message"
	"github.com/kolkov/clracer/internal/clrace/trace"
)

// checkCmd replays a recorded trace and reports every race it finds.
var checkCmd = &cobra.Command{
	Use:   "check [flags] trace_file",
	Short: "Replay a recorded kernel event trace and report data races.",
	Long: `Replay a recorded kernel event trace and report data races.
	Traces are YAML files carrying the kernel geometry, the buffer
	allocations, and the ordered memory and barrier events.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := detector.OptionsFromEnv()
		if off, _ := cmd.Flags().GetBool("no-uniform-writes"); off {
			opts.AllowUniformWrites = false
		}

		tr, err := trace.Load(args[0])
		if err != nil {
			return err
		}

		plain, _ := cmd.Flags().GetBool("plain")
		sink := newConsoleSink(os.Stderr, !plain)

		races, err := trace.Replay(tr, sink, opts)
		if err != nil {
			return err
		}

		if races > 0 {
			fmt.Fprintf(os.Stderr, "%d data race(s) detected\n", races)
			os.Exit(1)
		}

		fmt.Println("no data races detected")

		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("no-uniform-writes", false,
		"treat identical simultaneous writes as racing")
	checkCmd.Flags().Bool("plain", false, "disable colored output")
	rootCmd.AddCommand(checkCmd)
}

// consoleSink renders diagnostics to a writer, coloring error diagnostics
// when the writer is a terminal.
type consoleSink struct {
	w     io.Writer
	color bool
}

func newConsoleSink(w io.Writer, wantColor bool) *consoleSink {
	color := false

	if f, ok := w.(*os.File); ok && wantColor {
		color = term.IsTerminal(int(f.Fd()))
	}

	return &consoleSink{w: w, color: color}
}

// Emit implements message.Sink.
func (s *consoleSink) Emit(d message.Diagnostic) {
	text := d.String()

	if s.color && d.Severity == message.SeverityError {
		fmt.Fprintf(s.w, "\x1b[31m%s\x1b[0m\n", text)

		return
	}

	fmt.Fprintln(s.w, text)
}
