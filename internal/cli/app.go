package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// App is the goal-forecast command line tool
type App struct {
	rootCmd *cobra.Command
	out     io.Writer
	log     *logrus.Logger
	now     func() time.Time
}

// NewApp creates the CLI, writing results to out
func NewApp(out io.Writer, log *logrus.Logger) *App {
	app := &App{out: out, log: log, now: time.Now}

	defaults := forecast.DefaultConfig()
	rootCmd := &cobra.Command{
		Use:           "goal-forecast",
		Short:         "Forecast how long a savings goal takes with a Monte Carlo simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          app.runCommand,
	}
	rootCmd.SetOut(out)

	flags := rootCmd.Flags()
	flags.StringP("file", "f", "", "YAML file with the financial snapshot")
	flags.IntP("simulations", "s", defaults.Simulations, "Number of Monte Carlo trials")
	flags.Uint64("seed", 0, "Random seed, 0 picks a fresh one")
	flags.Int("month-cap", defaults.MonthCap, "Months after which a trial gives up")
	flags.Int("workers", defaults.Workers, "Goroutines running trials")
	flags.Duration("timeout", 0, "Abort the simulation after this long, 0 disables")
	flags.Bool("json", false, "Print the result as JSON")
	flags.Bool("timeline", false, "Also print the month by month timeline")
	_ = rootCmd.MarkFlagRequired("file")

	app.rootCmd = rootCmd
	return app
}

// Execute runs the CLI with the process arguments
func (app *App) Execute(ctx context.Context) error {
	return app.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides the arguments, used by tests
func (app *App) SetArgs(args []string) {
	app.rootCmd.SetArgs(args)
}

func (app *App) forecastConfig(cmd *cobra.Command) forecast.Config {
	cfg := forecast.DefaultConfig()
	flags := cmd.Flags()
	cfg.Simulations, _ = flags.GetInt("simulations")
	cfg.Seed, _ = flags.GetUint64("seed")
	cfg.MonthCap, _ = flags.GetInt("month-cap")
	cfg.Workers, _ = flags.GetInt("workers")
	cfg.Timeout, _ = flags.GetDuration("timeout")
	return cfg
}

func (app *App) runCommand(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	snapshot, err := loadSnapshot(path)
	if err != nil {
		return err
	}

	forecaster := forecast.NewForecaster(app.forecastConfig(cmd), app.log, forecast.WithClock(app.now))
	result, err := forecaster.Forecast(cmd.Context(), snapshot)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	app.renderSummary(result)
	if withTimeline, _ := cmd.Flags().GetBool("timeline"); withTimeline {
		app.renderTimeline(result)
	}
	return nil
}

func loadSnapshot(path string) (forecast.Snapshot, error) {
	var s forecast.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return s, nil
}

func (app *App) renderSummary(r *forecast.Result) {
	deterministic := "never"
	if r.DeterministicMonths != nil {
		deterministic = fmt.Sprintf("%.1f", *r.DeterministicMonths)
	}
	target := "-"
	if r.MonthsToTarget != nil {
		target = fmt.Sprintf("%.1f", *r.MonthsToTarget)
	}

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Real monthly contribution", fmt.Sprintf("%.2f", r.RealContribution)},
		{"Deterministic months", deterministic},
		{"P10 months", fmt.Sprintf("%.0f", r.MonteCarlo.P10)},
		{"P50 months", fmt.Sprintf("%.0f", r.MonteCarlo.P50)},
		{"P90 months", fmt.Sprintf("%.0f", r.MonteCarlo.P90)},
		{"Months to target date", target},
		{"Success probability", fmt.Sprintf("%.1f%%", r.SuccessProbability)},
		{"Capped trials", fmt.Sprintf("%d of %d", r.CappedTrials, r.Simulations)},
	}
	app.renderTable(data)
}

func (app *App) renderTimeline(r *forecast.Result) {
	data := pterm.TableData{{"Month", "Deterministic", "P10 optimistic", "P50 median", "P90 pessimistic"}}
	for _, p := range r.Timeline {
		data = append(data, []string{
			fmt.Sprintf("%d", p.Month),
			fmt.Sprintf("%.0f", p.Deterministic),
			fmt.Sprintf("%.0f", p.P10Optimistic),
			fmt.Sprintf("%.0f", p.P50Median),
			fmt.Sprintf("%.0f", p.P90Pessimistic),
		})
	}
	app.renderTable(data)
}

func (app *App) renderTable(data pterm.TableData) {
	rendered, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		app.log.Errorf("Failed to render table: %v", err)
		return
	}
	fmt.Fprintln(app.out, rendered)
}
