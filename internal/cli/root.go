// Package cli implements the timetablectl command tree.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Aashu-1911/sutra-backend/pkg/config"
)

// App carries what the commands share.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Stdin  io.Reader
	// IsTerminal reports whether stdout is interactive; it picks the default output format.
	IsTerminal func() bool
}

// NewRootCmd builds the timetablectl command tree.
func NewRootCmd(app *App) *cobra.Command {
	if app.Config == nil {
		app.Config = &config.Config{Scheduler: config.SchedulerConfig{OverflowPolicy: config.OverflowReject}}
	}
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}
	if app.Stdin == nil {
		app.Stdin = os.Stdin
	}
	if app.IsTerminal == nil {
		app.IsTerminal = func() bool { return false }
	}

	root := &cobra.Command{
		Use:           "timetablectl",
		Short:         "Generate, normalise and inspect weekly timetables offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(app), newNormalizeCmd(app), newTokenCmd(app))
	return root
}

func (a *App) defaultFormat() outputFormat {
	if a.IsTerminal() {
		return formatMarkdown
	}
	return formatJSON
}

// readInput reads a named file, or stdin when path is "-".
func (a *App) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(a.Stdin)
	}
	return os.ReadFile(path)
}
