package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aashu-1911/sutra-backend/internal/service"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
)

type normalizeOutput struct {
	Table        timetable.Table      `json:"table"`
	HeadersMatch bool                 `json:"headersMatch"`
	Conflicts    []timetable.Conflict `json:"conflicts,omitempty"`
}

func newNormalizeCmd(app *App) *cobra.Command {
	var (
		validate    bool
		datasetPath string
		format      outputFormat
	)

	cmd := &cobra.Command{
		Use:   "normalize <table.txt|->",
		Short: "Clean up pipe-delimited timetable text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := app.readInput(args[0])
			if err != nil {
				return fmt.Errorf("reading table: %w", err)
			}
			table := timetable.ParseTable(string(raw))
			out := normalizeOutput{Table: table, HeadersMatch: table.HasDefaultHeaders()}

			if validate {
				if !out.HeadersMatch {
					return timetable.ErrHeaderMismatch
				}
				var ds *timetable.Dataset
				if datasetPath != "" {
					loaded, err := app.loadDataset(datasetPath)
					if err != nil {
						return err
					}
					ds = &loaded
				}
				engine := timetable.NewEngine(service.EngineConfig(app.Config.Scheduler), app.Logger)
				_, conflicts, err := engine.CheckTable(table, ds)
				if err != nil {
					return err
				}
				out.Conflicts = conflicts
			}

			if format == "" {
				format = app.defaultFormat()
			}
			if err := writeTable(cmd.OutOrStdout(), format, table, out); err != nil {
				return err
			}
			for _, c := range out.Conflicts {
				fmt.Fprintln(cmd.ErrOrStderr(), c.String())
			}
			if len(out.Conflicts) > 0 {
				return fmt.Errorf("%d conflict(s) found", len(out.Conflicts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Check the table for collisions and reserved-slot violations")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset file whose per-course counts the table must match (with --validate)")
	cmd.Flags().Var(&format, "format", "Output format: markdown, csv or json (default markdown on a terminal, json otherwise)")
	return cmd
}
