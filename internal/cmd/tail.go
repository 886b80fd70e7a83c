package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atikulmunna/logrelay/internal/client"
	"github.com/atikulmunna/logrelay/internal/logging"
	"github.com/atikulmunna/logrelay/internal/model"
	"github.com/atikulmunna/logrelay/internal/output"
)

var (
	serverURL   string
	outputFmt   string
	levelFilter string
)

var tailCmd = &cobra.Command{
	Use:   "tail <logger>",
	Short: "Stream a logger from a running server",
	Long: `Connect to a logrelay server's event stream and print the backlog
followed by live entries. Supports colorized output and JSON mode.

Examples:
  logrelay tail main
  logrelay tail nginx --level warning,error
  logrelay tail main --output json --server http://logs.internal:8050`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8050", "logrelay server URL")
	tailCmd.Flags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")
	tailCmd.Flags().StringVarP(&levelFilter, "level", "l", "", "show only these levels (comma-separated: info,warning,error)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer, err := output.New(strings.ToLower(outputFmt), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger, err := logging.New("production")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logging.Sync(logger)

	levels := levelSet(levelFilter)
	c := client.New(serverURL, logger)
	return c.Stream(ctx, args[0], func(entry model.LogEntry) error {
		if !shouldShow(entry, levels) {
			return nil
		}
		return renderer.Render(entry)
	})
}

// levelSet parses a comma-separated level list.
func levelSet(filter string) map[string]bool {
	set := make(map[string]bool)
	for _, l := range strings.Split(filter, ",") {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "WARN" {
			l = "WARNING"
		}
		if l != "" {
			set[l] = true
		}
	}
	return set
}

// shouldShow returns true if the entry passes the level filter.
func shouldShow(entry model.LogEntry, levels map[string]bool) bool {
	if len(levels) == 0 {
		return true // no filter = show all
	}
	return levels[entry.Level]
}

