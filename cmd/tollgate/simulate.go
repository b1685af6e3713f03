package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/tps"
)

var simulateFlags struct {
	rulesFile   string
	point       string
	keys        []string
	duration    time.Duration
	requests    int64
	concurrency int
	rate        float64
	format      string
	progress    bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive an in-process engine with concurrent load",
	Long: `Load a rule file into an in-process engine and evaluate concurrent
checks against one point. Each worker uses its own connection id.

The report lists, per rule checked, how many checks it admitted and how
many exceeded its ceiling.

Examples:
  # Five seconds of unthrottled load from 8 workers
  tollgate simulate --rules rules.yaml --point configPublish --concurrency 8

  # Exactly 1000 checks at 200/s with a key
  tollgate simulate --rules rules.yaml --point configPublish \
      --key testKey:a1b --requests 1000 --rate 200`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateFlags.rulesFile, "rules", "r", "", "rule file (defaults to rules.file from the config)")
	simulateCmd.Flags().StringVarP(&simulateFlags.point, "point", "p", "", "monitor point name")
	simulateCmd.Flags().StringArrayVarP(&simulateFlags.keys, "key", "k", nil, "monitor key as type:key (repeatable)")
	simulateCmd.Flags().DurationVar(&simulateFlags.duration, "duration", 5*time.Second, "maximum run time")
	simulateCmd.Flags().Int64Var(&simulateFlags.requests, "requests", 0, "stop after this many checks (0 runs for --duration)")
	simulateCmd.Flags().IntVar(&simulateFlags.concurrency, "concurrency", 4, "concurrent workers")
	simulateCmd.Flags().Float64Var(&simulateFlags.rate, "rate", 0, "total checks per second (0 is unlimited)")
	simulateCmd.Flags().StringVar(&simulateFlags.format, "format", "text", "output format: text, json, csv")
	simulateCmd.Flags().BoolVar(&simulateFlags.progress, "progress", false, "show a progress bar (requires --requests)")
	_ = simulateCmd.MarkFlagRequired("point")
}

// simOptions configures one simulation run.
type simOptions struct {
	Point       string
	Keys        []tps.MonitorKey
	Duration    time.Duration
	Requests    int64
	Concurrency int
	Rate        float64
	Progress    cli.ProgressReporter
}

// simTally counts outcomes for one rule.
type simTally struct {
	Admitted int64
	Exceeded int64
}

// simReport is the outcome of a simulation.
type simReport struct {
	Admitted int64
	Rejected int64
	Elapsed  time.Duration
	Checks   map[string]*simTally
}

func runSimulate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(simulateFlags.format)
	if err != nil {
		return err
	}
	keys, err := parseKeys(simulateFlags.keys)
	if err != nil {
		return err
	}

	path := simulateFlags.rulesFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Rules.File
	}
	if path == "" {
		return cli.NewConfigError("", errors.New("no rule file: pass --rules or set rules.file"))
	}

	manager, err := loadManager(path)
	if err != nil {
		return err
	}

	opts := simOptions{
		Point:       simulateFlags.point,
		Keys:        keys,
		Duration:    simulateFlags.duration,
		Requests:    simulateFlags.requests,
		Concurrency: simulateFlags.concurrency,
		Rate:        simulateFlags.rate,
	}
	if simulateFlags.progress && simulateFlags.requests > 0 {
		opts.Progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	report, err := simulate(ctx, manager, opts)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		total := report.Admitted + report.Rejected
		fmt.Fprintf(out, "checks: %d admitted, %d rejected in %s (%.0f/s)\n\n",
			report.Admitted, report.Rejected, report.Elapsed.Round(time.Millisecond),
			float64(total)/report.Elapsed.Seconds())
	}
	return cli.NewFormatter(format).FormatTo(out, report.table())
}

// loadManager builds a quiet engine holding every point of a rule file.
func loadManager(path string) (*tps.Manager, error) {
	set, err := rules.Load(path)
	if err != nil {
		return nil, cli.NewConfigError(path, err)
	}
	manager := tps.NewManager(tps.WithLogger(logging.Discard()))
	for _, name := range set.Names {
		if err := manager.NewPoint(name).ApplyRule(set.Rules[name]); err != nil {
			return nil, cli.NewConfigError(path, err)
		}
	}
	return manager, nil
}

// simulate evaluates checks from opts.Concurrency workers until the request
// budget is spent, the duration elapses or ctx is cancelled.
func simulate(ctx context.Context, manager *tps.Manager, opts simOptions) (*simReport, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}
	if opts.Duration <= 0 && opts.Requests <= 0 {
		return nil, errors.New("either duration or requests must be positive")
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), opts.Concurrency)
	}

	report := &simReport{Checks: make(map[string]*simTally)}
	var (
		mu       sync.Mutex
		issued   atomic.Int64
		admitted atomic.Int64
		rejected atomic.Int64
	)

	step := max(opts.Requests/100, 1)
	if opts.Progress != nil {
		opts.Progress.Start(opts.Requests)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Concurrency; i++ {
		connID := uuid.NewString()
		g.Go(func() error {
			for {
				n := issued.Add(1)
				if opts.Requests > 0 && n > opts.Requests {
					return nil
				}
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return nil
					}
				} else if gctx.Err() != nil {
					return nil
				}

				d := manager.Evaluate(opts.Point, connID, opts.Keys)
				if d.Allowed {
					admitted.Add(1)
				} else {
					rejected.Add(1)
				}

				mu.Lock()
				for _, c := range d.Checks {
					label := displayPattern(c.Pattern)
					t, ok := report.Checks[label]
					if !ok {
						t = &simTally{}
						report.Checks[label] = t
					}
					if c.Admitted {
						t.Admitted++
					} else {
						t.Exceeded++
					}
				}
				mu.Unlock()

				if opts.Progress != nil && n%step == 0 {
					opts.Progress.Update(n)
				}
			}
		})
	}
	err := g.Wait()
	report.Elapsed = time.Since(start)
	report.Admitted = admitted.Load()
	report.Rejected = rejected.Load()

	if opts.Progress != nil {
		opts.Progress.Finish()
	}
	return report, err
}

func (r *simReport) table() *cli.Table {
	labels := make([]string, 0, len(r.Checks))
	for label := range r.Checks {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	table := cli.NewTable("RULE", "ADMITTED", "EXCEEDED")
	for _, label := range labels {
		t := r.Checks[label]
		table.AddRow(label, t.Admitted, t.Exceeded)
	}
	return table
}
