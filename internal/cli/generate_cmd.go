package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aashu-1911/sutra-backend/internal/service"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
)

func newGenerateCmd(app *App) *cobra.Command {
	var (
		seed          int64
		deterministic bool
		repetitions   int
		overflow      string
		format        outputFormat
	)

	cmd := &cobra.Command{
		Use:   "generate <dataset.yaml|->",
		Short: "Generate a timetable from a YAML or JSON dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := app.loadDataset(args[0])
			if err != nil {
				return err
			}

			cfg := service.EngineConfig(app.Config.Scheduler)
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cmd.Flags().Changed("deterministic") {
				cfg.Deterministic = deterministic
			}
			if repetitions > 0 {
				cfg.Repetitions = repetitions
			}

			res, err := timetable.NewEngine(cfg, app.Logger).Generate(dataset)
			if err != nil {
				return err
			}
			if res.Status == timetable.StatusPartial && !strings.EqualFold(overflow, config.OverflowAllow) {
				return fmt.Errorf("%d session(s) do not fit the weekly grid; rerun with --overflow=allow to keep the partial table", res.Dropped)
			}

			if format == "" {
				format = app.defaultFormat()
			}
			if err := writeTable(cmd.OutOrStdout(), format, res.Table, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "status=%s dropped=%d free_slots=%d synthesized=%d seed=%d\n",
				res.Status, res.Dropped, len(res.FreeSlots), res.Synthesized, res.Seed)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for slot selection")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "Place sessions in grid order without randomness")
	cmd.Flags().IntVar(&repetitions, "repetitions", 0, "Weekly meetings per theory course (default from config)")
	cmd.Flags().StringVar(&overflow, "overflow", app.Config.Scheduler.OverflowPolicy, "What to do when sessions do not fit: reject or allow")
	cmd.Flags().Var(&format, "format", "Output format: markdown, csv or json (default markdown on a terminal, json otherwise)")
	return cmd
}

func (app *App) loadDataset(path string) (timetable.Dataset, error) {
	raw, err := app.readInput(path)
	if err != nil {
		return timetable.Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}
	var dataset timetable.RawDataset
	if err := yaml.Unmarshal(raw, &dataset); err != nil {
		return timetable.Dataset{}, fmt.Errorf("parsing dataset: %w", err)
	}
	return timetable.Ingest(dataset), nil
}
