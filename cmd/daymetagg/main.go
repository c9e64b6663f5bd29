// Command daymetagg drives the Daymet post-aggregation pipeline: combining
// per-year wide extracts into long per-measure series, and extracting
// extreme temperature waves from the combined series.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schwartzgroup/daymet-aggregation/combine"
	"github.com/schwartzgroup/daymet-aggregation/extremes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	root      string
	logLevel  string
	logFormat string
}

// newLogger builds the process logger with a short run id attached to every
// record, so interleaved batch runs stay distinguishable in shared logs.
func (o *rootOptions) newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch o.logFormat {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("invalid --log-format %q (text or json)", o.logFormat)
	}
	return slog.New(handler).With("run_id", uuid.NewString()[:8]), nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "daymetagg",
		Short:        "Combine Daymet extracts and find extreme temperature waves",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.root, "root", combine.DefaultRoot,
		"pipeline root directory (holds aggregated/, aggregated-combined/, extra/)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text",
		"log format (text, json)")
	cmd.AddCommand(newCombineCmd(opts), newExtremesCmd(opts))
	return cmd
}

func newCombineCmd(root *rootOptions) *cobra.Command {
	var (
		aggregations  []string
		keepGoing     bool
		progressEvery int
	)
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine per-year wide extracts into long per-measure series",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.newLogger()
			if err != nil {
				return err
			}

			runner := combine.NewRunner(root.root).
				WithLogger(log).
				WithAggregations(aggregations...).
				WithProgress(combine.NewLogReporter(log)).
				WithReportInterval(progressEvery)
			if keepGoing {
				runner.WithErrorHandler(combine.ErrorHandlerFunc(
					func(context.Context, combine.OutputPartitionKey, error) combine.Action {
						return combine.ActionSkip
					},
				))
			}

			stats, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if n := stats.Errors(); n > 0 {
				return fmt.Errorf("%d partitions failed", n)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&aggregations, "aggregations", combine.Aggregations,
		"aggregation kinds to combine")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false,
		"skip failed partitions instead of aborting")
	cmd.Flags().IntVar(&progressEvery, "progress-every", combine.DefaultReportInterval,
		"rows between progress reports")
	return cmd
}

func newExtremesCmd(root *rootOptions) *cobra.Command {
	var (
		cutoffs       string
		tmaxPath      string
		tmaxQuantiles string
		tmaxCutoff    int
		tminPath      string
		tminQuantiles string
		tminCutoff    int
		output        string
	)
	cmd := &cobra.Command{
		Use:   "extremes",
		Short: "Extract extreme temperature waves from combined series",
		Long: `Extract extreme cold/heat waves from the combined mean_tmax and mean_tmin
series. Without --output, every geography under <root>/extra is scanned and
each missing cutoff-pair output is produced. With --output, a single output
is produced from explicitly named input files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.newLogger()
			if err != nil {
				return err
			}

			if output != "" {
				required := []struct{ flag, value string }{
					{"--tmax", tmaxPath},
					{"--tmax-quantiles", tmaxQuantiles},
					{"--tmin", tminPath},
					{"--tmin-quantiles", tminQuantiles},
				}
				for _, r := range required {
					if r.value == "" {
						return fmt.Errorf("%s is required with --output", r.flag)
					}
				}
				cold, hot, err := extremes.LoadCutoffs(tmaxQuantiles, tmaxCutoff, tminQuantiles, tminCutoff)
				if err != nil {
					return err
				}
				job := extremes.Job{
					TmaxPath:    tmaxPath,
					ColdCutoffs: cold,
					TminPath:    tminPath,
					HotCutoffs:  hot,
					OutputPath:  output,
				}
				return job.Run(cmd.Context(), log, &combine.Stats{})
			}

			pairs, err := extremes.ParseCutoffs(cutoffs)
			if err != nil {
				return err
			}
			_, err = extremes.NewExtractor(root.root).
				WithLogger(log).
				WithCutoffs(pairs...).
				Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVar(&cutoffs, "cutoffs", defaultCutoffsFlag(),
		"low:high percentile pairs to produce")
	cmd.Flags().StringVar(&tmaxPath, "tmax", "", "combined mean tmax series (explicit mode)")
	cmd.Flags().StringVar(&tmaxQuantiles, "tmax-quantiles", "", "tmax quantile table (explicit mode)")
	cmd.Flags().IntVar(&tmaxCutoff, "tmax-cutoff", 1, "cold percentile of tmax (explicit mode)")
	cmd.Flags().StringVar(&tminPath, "tmin", "", "combined mean tmin series (explicit mode)")
	cmd.Flags().StringVar(&tminQuantiles, "tmin-quantiles", "", "tmin quantile table (explicit mode)")
	cmd.Flags().IntVar(&tminCutoff, "tmin-cutoff", 99, "hot percentile of tmin (explicit mode)")
	cmd.Flags().StringVar(&output, "output", "", "output path (explicit mode)")
	return cmd
}

func defaultCutoffsFlag() string {
	parts := make([]string, len(extremes.DefaultCutoffs))
	for i, p := range extremes.DefaultCutoffs {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
