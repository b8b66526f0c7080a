package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-mergejoin/pkg/blockstore"
	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
	"github.com/dd0wney/cluso-mergejoin/pkg/metrics"
	"github.com/dd0wney/cluso-mergejoin/pkg/query"
)

type runOptions struct {
	dir         string
	dumpMetrics bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	var tf *tableFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate tables and run every configured join kind",
		Long: `Generate the tables, store them as block files and run each configured
join kind over them, printing rows, blocks pulled and timing per kind.

Example:
  joinbench run --left-rows 50000 --undef 10 --kinds undef-inner,undef-optional
  joinbench run -c bench.yaml --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := tf.resolve(cmd.Flags(), root.ConfigPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir := opts.dir
			if dir == "" {
				dir, err = os.MkdirTemp("", "joinbench-*")
				if err != nil {
					return errors.Wrap(err, "creating table directory")
				}
				defer os.RemoveAll(dir)
			}

			registry := metrics.NewRegistry()
			reports, err := runBench(ctx, cfg, dir, root.logger, registry)
			if err != nil {
				return err
			}
			writeReport(cmd.OutOrStdout(), reports)
			if opts.dumpMetrics {
				return dumpMetrics(cmd.OutOrStdout(), registry)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "directory for the block files (default: a temporary directory)")
	cmd.Flags().BoolVar(&opts.dumpMetrics, "metrics", false, "print the Prometheus metrics after the run")
	tf = addTableFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&tf.cfg.Kinds, "kinds", tf.cfg.Kinds, "join kinds to run")
	cmd.Flags().IntVar(&tf.cfg.Workers, "workers", tf.cfg.Workers, "joins run concurrently")
	cmd.Flags().IntVar(&tf.cfg.Query.LookAhead, "look-ahead", tf.cfg.Query.LookAhead, "right blocks of one run buffered at once")
	cmd.Flags().DurationVar(&tf.cfg.Query.Timeout, "timeout", tf.cfg.Query.Timeout, "timeout per join")
	return cmd
}

// runReport is one line of the benchmark output.
type runReport struct {
	Kind        query.JoinKind
	Rows        int
	LeftBlocks  int
	RightBlocks int
	OutOfOrder  bool
	Duration    time.Duration
	Err         error
}

// inputs holds the open block files of one run.
type inputs struct {
	readers []*blockstore.Reader
	pairs   map[tableRole][2]*blockstore.Reader
}

func openInputs(set tableSet) (*inputs, error) {
	in := &inputs{pairs: make(map[tableRole][2]*blockstore.Reader)}
	for _, role := range roles {
		pair, ok := set[role]
		if !ok {
			continue
		}
		var readers [2]*blockstore.Reader
		for i, path := range []string{pair.Left, pair.Right} {
			r, err := blockstore.Open(path)
			if err != nil {
				in.Close()
				return nil, err
			}
			in.readers = append(in.readers, r)
			readers[i] = r
		}
		in.pairs[role] = readers
	}
	return in, nil
}

func (in *inputs) decompressions() int64 {
	var n int64
	for _, r := range in.readers {
		n += r.Decompressions()
	}
	return n
}

func (in *inputs) Close() {
	for _, r := range in.readers {
		r.Close()
	}
}

func (in *inputs) request(kind query.JoinKind, cfg BenchConfig) query.JoinRequest {
	pair := in.pairs[roleOf(kind)]
	left, right := pair[0], pair[1]
	return query.JoinRequest{
		Kind:        kind,
		Left:        left.Side(),
		Right:       right.Side(),
		JoinColumns: cfg.JoinColumns,
		LeftWidth:   left.Width(),
		RightWidth:  right.Width(),
	}
}

// runBench writes the tables to dir and runs every configured kind over
// them. A failing join is reported in its runReport; the returned error is
// reserved for failures outside the joins.
func runBench(ctx context.Context, cfg BenchConfig, dir string, logger logging.Logger, registry *metrics.Registry) ([]runReport, error) {
	started := time.Now()

	timer := logging.StartTimer(logger, "tables generated", logging.Path(dir))
	set, rows, err := writeTables(cfg, dir, registry)
	if err != nil {
		return nil, err
	}
	timer.End(logging.Rows(rows))

	in, err := openInputs(set)
	if err != nil {
		registry.RecordBlockFileError("open")
		return nil, err
	}
	defer in.Close()

	exec, err := query.NewExecutor(cfg.Query, query.WithLogger(logger), query.WithMetrics(registry))
	if err != nil {
		return nil, err
	}

	reqs := make([]query.JoinRequest, len(cfg.Kinds))
	for i, name := range cfg.Kinds {
		kind, err := query.ParseKind(name)
		if err != nil {
			return nil, err
		}
		reqs[i] = in.request(kind, cfg)
	}

	reports := make([]runReport, len(reqs))
	if cfg.Workers > 1 {
		results, err := exec.ExecuteBatch(ctx, cfg.Workers, 0, reqs...)
		if err != nil {
			logger.Warn("joins failed", logging.Error(err))
		}
		for i, res := range results {
			reports[i] = report(reqs[i].Kind, res, nil)
			if res == nil {
				reports[i].Err = errors.Newf("%s join failed", reqs[i].Kind)
			}
		}
	} else {
		for i, req := range reqs {
			res, err := exec.Execute(ctx, req)
			reports[i] = report(req.Kind, res, err)
			logger.Info("join finished", logging.JoinKind(string(req.Kind)), logging.Rows(reports[i].Rows), logging.Latency(reports[i].Duration))
		}
	}

	registry.RecordDecompressions(in.decompressions())
	registry.UpdateSystemMetrics(started)
	return reports, nil
}

func report(kind query.JoinKind, res *query.JoinResult, err error) runReport {
	r := runReport{Kind: kind, Err: err}
	if res != nil {
		r.Rows = len(res.Rows)
		r.LeftBlocks = res.Stats.Left.Blocks
		r.RightBlocks = res.Stats.Right.Blocks
		r.OutOfOrder = res.OutOfOrder
		r.Duration = res.Duration
	}
	return r
}

func writeReport(w io.Writer, reports []runReport) {
	fmt.Fprintf(w, "%-18s %10s %8s %8s %6s %12s\n", "kind", "rows", "left", "right", "sorted", "time")
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(w, "%-18s failed: %v\n", r.Kind, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-18s %10d %8d %8d %6v %12s\n",
			r.Kind, r.Rows, r.LeftBlocks, r.RightBlocks, !r.OutOfOrder, r.Duration.Round(time.Microsecond))
	}
}

func dumpMetrics(w io.Writer, registry *metrics.Registry) error {
	families, err := registry.GetPrometheusRegistry().Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return nil
}
