package query

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
	"github.com/dd0wney/cluso-mergejoin/pkg/metrics"
)

// Executor runs JoinRequests against the join core. It owns the pieces the
// core leaves to its caller: timeouts, turning contract violations into
// errors, logging and metrics. An Executor is safe for concurrent use.
type Executor struct {
	config  Config
	logger  logging.Logger
	metrics *metrics.Registry
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger. The default writes JSON to stderr at the
// configured level.
func WithLogger(logger logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics sets the registry joins are recorded on. The default is
// metrics.DefaultRegistry.
func WithMetrics(registry *metrics.Registry) ExecutorOption {
	return func(e *Executor) {
		e.metrics = registry
	}
}

// NewExecutor creates an executor from a validated Config.
func NewExecutor(cfg Config, opts ...ExecutorOption) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid executor config")
	}
	e := &Executor{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewJSONLogger(os.Stderr, cfg.logLevel())
	}
	if e.metrics == nil && cfg.RecordMetrics {
		e.metrics = metrics.DefaultRegistry()
	}
	e.logger = e.logger.With(logging.Component("query"))
	return e, nil
}

// Config returns the executor's configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Metrics returns the registry joins are recorded on, or nil when recording
// is disabled.
func (e *Executor) Metrics() *metrics.Registry {
	if !e.config.RecordMetrics {
		return nil
	}
	return e.metrics
}

// Execute runs one join to completion and returns its materialized rows.
// The returned error is marked with ErrInvalidRequest, ErrTimeout or
// ErrContractViolation when one of those applies.
func (e *Executor) Execute(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	runID := uuid.NewString()
	log := e.logger.With(logging.RunID(runID), logging.JoinKind(string(req.Kind)))

	if err := req.validate(); err != nil {
		log.Warn("join request rejected", logging.Error(err))
		return nil, err
	}

	timeout := e.joinTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	adder := join.NewTableAdder(req.JoinColumns, req.LeftWidth, req.RightWidth)
	var res join.Result
	err := join.CatchContractViolation(func() error {
		var err error
		res, err = e.dispatch(ctx, req, adder)
		return err
	})
	duration := time.Since(start)
	err = classify(ctx, err, req.Kind, timeout)

	e.record(req.Kind, res, duration, err)
	fields := []logging.Field{
		logging.Columns(req.JoinColumns),
		logging.Rows(len(adder.Rows())),
		logging.Int("left_blocks", res.Left.Blocks),
		logging.Int("right_blocks", res.Right.Blocks),
		logging.Bool("out_of_order", res.OutOfOrder),
		logging.Latency(duration),
	}
	if err != nil {
		log.Error("join failed", append(fields, logging.Error(err), logging.Cause(err))...)
		return nil, err
	}
	log.Debug("join executed", fields...)

	return &JoinResult{
		RunID:      runID,
		Kind:       req.Kind,
		Rows:       adder.Rows(),
		Stats:      res.Stats,
		Duration:   duration,
		OutOfOrder: res.OutOfOrder,
	}, nil
}

func (e *Executor) dispatch(ctx context.Context, req JoinRequest, adder *join.TableAdder) (join.Result, error) {
	left := join.CheckedSide{Side: req.Left, Width: req.LeftWidth}
	right := join.CheckedSide{Side: req.Right, Width: req.RightWidth}
	if req.Kind == KindInner || req.Kind == KindOptional {
		left.DefinedColumns, right.DefinedColumns = req.JoinColumns, req.JoinColumns
	}
	key := join.RowKey(req.JoinColumns)

	opts := []join.Option{join.WithLookAhead(e.config.LookAhead)}
	if req.Kind.optional() {
		opts = append(opts, join.WithKind(join.Optional))
	}
	if req.RequireNonEmpty {
		opts = append(opts, join.RequireNonEmpty())
	}

	switch req.Kind {
	case KindInner, KindOptional:
		return join.Zipper[join.Row, join.Row, join.Key](ctx, left, right, join.Compare, key, key, adder, opts...)
	case KindUndefInner, KindUndefOptional:
		return join.UndefJoin[join.Row, join.Row](ctx, left, right, key, key, adder, opts...)
	case KindSpecialOptional:
		return join.SpecialOptionalJoin(ctx, left, right, req.JoinColumns, adder)
	default:
		return join.Result{}, errors.Wrapf(ErrUnknownKind, "%q", req.Kind)
	}
}

func classify(ctx context.Context, err error, kind JoinKind, timeout time.Duration) error {
	switch {
	case err == nil:
		return nil
	case join.IsContractViolation(err):
		return errors.Mark(errors.Wrapf(err, "%s join", kind), ErrContractViolation)
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Mark(errors.Wrapf(err, "%s join exceeded %s", kind, timeout), ErrTimeout)
	default:
		return errors.Wrapf(err, "%s join", kind)
	}
}

func (e *Executor) record(kind JoinKind, res join.Result, duration time.Duration, err error) {
	m := e.Metrics()
	if m == nil {
		return
	}
	k := string(kind)
	m.RecordJoin(k, statusOf(err), duration, res.RowsEmitted+res.OptionalRows)
	m.RecordBlocksPulled(k, res.Left.Blocks, res.Right.Blocks)
	if kind.undefAware() {
		m.RecordUndefJoin(k, res.UndefProbes, res.OutOfOrder)
	}
}
