package query

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-mergejoin/pkg/blockstore"
	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
	"github.com/dd0wney/cluso-mergejoin/pkg/metrics"
)

const U = int64(join.Undef)

func newTestExecutor(t *testing.T, cfg Config) (*Executor, *metrics.Registry) {
	t.Helper()
	registry := metrics.NewRegistry()
	exec, err := NewExecutor(cfg, WithLogger(logging.NewNopLogger()), WithMetrics(registry))
	require.NoError(t, err)
	return exec, registry
}

func side(rows []join.Row, sizes ...int) join.Side[join.Row] {
	return join.NewSliceSide(join.SplitRows(rows, sizes...)...)
}

func sorted(rows []join.Row) []join.Row {
	out := append([]join.Row(nil), rows...)
	sort.Slice(out, func(i, j int) bool {
		return join.CompareRows(out[i], out[j], len(out[i])) < 0
	})
	return out
}

func pairRequest(kind JoinKind, left, right []join.Row) JoinRequest {
	return JoinRequest{
		Kind:        kind,
		Left:        side(left, 1),
		Right:       side(right, 1),
		JoinColumns: 1,
		LeftWidth:   2,
		RightWidth:  2,
	}
}

func TestExecute_Kinds(t *testing.T) {
	defined := []join.Row{join.R(2, 20), join.R(3, 30)}
	wildcard := []join.Row{join.R(U, 7), join.R(2, 20), join.R(3, 30)}
	right := []join.Row{join.R(1, 100), join.R(2, 200)}

	tests := []struct {
		kind JoinKind
		left []join.Row
		want []join.Row
	}{
		{KindInner, defined, []join.Row{join.R(2, 20, 200)}},
		{KindOptional, defined, []join.Row{join.R(2, 20, 200), join.R(3, 30, U)}},
		{KindUndefInner, wildcard, []join.Row{join.R(1, 7, 100), join.R(2, 7, 200), join.R(2, 20, 200)}},
		{KindUndefOptional, wildcard, []join.Row{join.R(1, 7, 100), join.R(2, 7, 200), join.R(2, 20, 200), join.R(3, 30, U)}},
	}

	exec, _ := newTestExecutor(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res, err := exec.Execute(context.Background(), pairRequest(tt.kind, tt.left, right))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, sorted(tt.want), sorted(res.Rows))
			assert.Equal(t, len(tt.want), res.Stats.RowsEmitted+res.Stats.OptionalRows)
		})
	}
}

func TestExecute_SpecialOptional(t *testing.T) {
	left := []join.Row{join.R(1, U, 10), join.R(1, 5, 11), join.R(2, U, 12)}
	right := []join.Row{join.R(1, 5, 100), join.R(1, 6, 101)}

	exec, _ := newTestExecutor(t, DefaultConfig())
	res, err := exec.Execute(context.Background(), JoinRequest{
		Kind:        KindSpecialOptional,
		Left:        side(left, 2),
		Right:       side(right, 1),
		JoinColumns: 2,
		LeftWidth:   3,
		RightWidth:  3,
	})
	require.NoError(t, err)

	want := []join.Row{
		join.R(1, 5, 10, 100),
		join.R(1, 6, 10, 101),
		join.R(1, 5, 11, 100),
		join.R(2, U, 12, U),
	}
	assert.Equal(t, sorted(want), sorted(res.Rows))
	assert.Equal(t, 1, res.Stats.OptionalRows)
}

func TestExecute_RunIDsAreUnique(t *testing.T) {
	exec, _ := newTestExecutor(t, DefaultConfig())
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res, err := exec.Execute(context.Background(), pairRequest(KindInner, []join.Row{join.R(1, 1)}, []join.Row{join.R(1, 2)}))
		require.NoError(t, err)
		require.False(t, seen[res.RunID], "duplicate run id %s", res.RunID)
		seen[res.RunID] = true
	}
}

func TestExecute_ContractViolations(t *testing.T) {
	tests := []struct {
		name string
		req  JoinRequest
	}{
		{
			name: "unsorted left",
			req:  pairRequest(KindUndefInner, []join.Row{join.R(1, 1), join.R(0, 1)}, []join.Row{join.R(1, 2)}),
		},
		{
			name: "UNDEF on the left of inner",
			req:  pairRequest(KindInner, []join.Row{join.R(U, 1)}, []join.Row{join.R(5, 2)}),
		},
		{
			name: "UNDEF on the right of optional",
			req:  pairRequest(KindOptional, []join.Row{join.R(5, 1)}, []join.Row{join.R(U, 2)}),
		},
		{
			name: "row wider than declared",
			req:  pairRequest(KindInner, []join.Row{join.R(1, 1, 1)}, []join.Row{join.R(1, 2)}),
		},
		{
			name: "UNDEF on the right of special optional",
			req: JoinRequest{
				Kind:        KindSpecialOptional,
				Left:        side([]join.Row{join.R(1, 1, 0)}),
				Right:       side([]join.Row{join.R(1, U, 0)}),
				JoinColumns: 2,
				LeftWidth:   3,
				RightWidth:  3,
			},
		},
		{
			name: "empty input with RequireNonEmpty",
			req: func() JoinRequest {
				r := pairRequest(KindInner, []join.Row{join.R(1, 1)}, nil)
				r.RequireNonEmpty = true
				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, registry := newTestExecutor(t, DefaultConfig())
			res, err := exec.Execute(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrContractViolation), "got %v", err)
			assert.True(t, join.IsContractViolation(err))
			assert.False(t, errors.Is(err, ErrTimeout))

			counter, err := registry.JoinsTotal.GetMetricWithLabelValues(string(tt.req.Kind), statusContractViolation)
			require.NoError(t, err)
			var m dto.Metric
			require.NoError(t, counter.Write(&m))
			assert.Equal(t, 1.0, m.Counter.GetValue())
		})
	}
}

func TestExecute_UndefAwareKindsAcceptWildcards(t *testing.T) {
	exec, _ := newTestExecutor(t, DefaultConfig())
	left := []join.Row{join.R(U, 1)}
	right := []join.Row{join.R(5, 2)}

	res, err := exec.Execute(context.Background(), pairRequest(KindUndefInner, left, right))
	require.NoError(t, err)
	assert.Equal(t, []join.Row{join.R(5, 1, 2)}, res.Rows)

	_, err = exec.Execute(context.Background(), pairRequest(KindInner, left, right))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNDEF-aware join")
}

func blockingSide() join.Side[join.Row] {
	return join.SideFunc[join.Row](func(ctx context.Context) (join.Block[join.Row], error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func TestExecute_Timeout(t *testing.T) {
	exec, registry := newTestExecutor(t, DefaultConfig())

	req := pairRequest(KindUndefOptional, nil, []join.Row{join.R(1, 1)})
	req.Left = blockingSide()
	req.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := exec.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "pulling left block")
	assert.Less(t, time.Since(start), 5*time.Second)

	counter, _ := registry.JoinsTotal.GetMetricWithLabelValues(string(KindUndefOptional), statusTimeout)
	var m dto.Metric
	require.NoError(t, counter.Write(&m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
}

func TestExecute_CallerCancellationIsNotATimeout(t *testing.T) {
	exec, _ := newTestExecutor(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Execute(ctx, pairRequest(KindInner, []join.Row{join.R(1, 1)}, []join.Row{join.R(1, 2)}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, statusError, statusOf(err))
}

func TestExecute_InvalidRequests(t *testing.T) {
	valid := func() JoinRequest {
		return pairRequest(KindInner, []join.Row{join.R(1, 1)}, []join.Row{join.R(1, 2)})
	}

	tests := []struct {
		name   string
		mutate func(*JoinRequest)
		target error
	}{
		{"missing left", func(r *JoinRequest) { r.Left = nil }, ErrInvalidRequest},
		{"no join columns", func(r *JoinRequest) { r.JoinColumns = 0 }, ErrInvalidRequest},
		{"too many join columns", func(r *JoinRequest) { r.JoinColumns = 5; r.LeftWidth = 5; r.RightWidth = 5 }, ErrInvalidRequest},
		{"width below join columns", func(r *JoinRequest) { r.RightWidth = 0 }, ErrInvalidRequest},
		{"unknown kind", func(r *JoinRequest) { r.Kind = "full-outer" }, ErrUnknownKind},
		{"special needs two columns", func(r *JoinRequest) { r.Kind = KindSpecialOptional }, ErrInvalidRequest},
	}

	exec, _ := newTestExecutor(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := exec.Execute(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestExecute_RecordsMetrics(t *testing.T) {
	exec, registry := newTestExecutor(t, DefaultConfig())

	left := []join.Row{join.R(U, 1), join.R(1, 2), join.R(2, 3)}
	right := []join.Row{join.R(1, 10), join.R(2, 20)}
	res, err := exec.Execute(context.Background(), pairRequest(KindUndefInner, left, right))
	require.NoError(t, err)

	value := func(c interface{ Write(*dto.Metric) error }) float64 {
		var m dto.Metric
		require.NoError(t, c.Write(&m))
		return m.Counter.GetValue()
	}

	kind := string(KindUndefInner)
	success, _ := registry.JoinsTotal.GetMetricWithLabelValues(kind, statusSuccess)
	assert.Equal(t, 1.0, value(success))
	leftBlocks, _ := registry.JoinBlocksPulled.GetMetricWithLabelValues(kind, "left")
	assert.Equal(t, float64(res.Stats.Left.Blocks), value(leftBlocks))
	rightBlocks, _ := registry.JoinBlocksPulled.GetMetricWithLabelValues(kind, "right")
	assert.Equal(t, float64(res.Stats.Right.Blocks), value(rightBlocks))
	probes, _ := registry.JoinUndefProbes.GetMetricWithLabelValues(kind)
	assert.Equal(t, float64(res.Stats.UndefProbes), value(probes))
}

func TestExecute_MetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecordMetrics = false
	exec, registry := newTestExecutor(t, cfg)
	assert.Nil(t, exec.Metrics())

	_, err := exec.Execute(context.Background(), pairRequest(KindInner, []join.Row{join.R(1, 1)}, []join.Row{join.R(1, 2)}))
	require.NoError(t, err)

	families, err := registry.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.False(t, strings.HasPrefix(f.GetName(), "mergejoin_executions"), "unexpected %s", f.GetName())
	}
}

func TestExecute_Logging(t *testing.T) {
	var buf bytes.Buffer
	exec, err := NewExecutor(DefaultConfig(),
		WithLogger(logging.NewJSONLogger(&buf, logging.DebugLevel)),
		WithMetrics(metrics.NewRegistry()),
	)
	require.NoError(t, err)

	res, err := exec.Execute(context.Background(), pairRequest(KindOptional, []join.Row{join.R(1, 1)}, []join.Row{join.R(2, 2)}))
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), pairRequest(KindInner, []join.Row{join.R(1, 1), join.R(0, 1)}, []join.Row{join.R(1, 2)}))
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ok, failed logging.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))

	assert.Equal(t, "debug", ok.Level)
	assert.Equal(t, "join executed", ok.Message)
	assert.Equal(t, res.RunID, ok.Fields["run_id"])
	assert.Equal(t, "optional", ok.Fields["join_kind"])
	assert.Equal(t, "query", ok.Fields["component"])

	assert.Equal(t, "error", failed.Level)
	assert.Equal(t, "join failed", failed.Message)
	assert.Contains(t, failed.Fields["error"], "contract violation")
}

func TestExecute_BlockFiles(t *testing.T) {
	dir := t.TempDir()
	leftPath := filepath.Join(dir, "left.mjb")
	rightPath := filepath.Join(dir, "right.mjb")

	leftRows := []join.Row{join.R(U, 2, 1), join.R(1, U, 2), join.R(1, 2, 3), join.R(4, 4, 4)}
	rightRows := []join.Row{join.R(1, 2, 10), join.R(3, 2, 11), join.R(4, 4, 12)}
	require.NoError(t, blockstore.WriteFile(leftPath, leftRows, blockstore.WriterOptions{Width: 3, JoinColumns: 2, BlockRows: 2}))
	require.NoError(t, blockstore.WriteFile(rightPath, rightRows, blockstore.WriterOptions{Width: 3, JoinColumns: 2, BlockRows: 1}))

	left, err := blockstore.Open(leftPath)
	require.NoError(t, err)
	defer left.Close()
	right, err := blockstore.Open(rightPath)
	require.NoError(t, err)
	defer right.Close()

	exec, _ := newTestExecutor(t, DefaultConfig())
	res, err := exec.Execute(context.Background(), JoinRequest{
		Kind:        KindUndefInner,
		Left:        left.Side(),
		Right:       right.Side(),
		JoinColumns: 2,
		LeftWidth:   left.Width(),
		RightWidth:  right.Width(),
	})
	require.NoError(t, err)

	want := []join.Row{
		join.R(1, 2, 1, 10),
		join.R(3, 2, 1, 11),
		join.R(1, 2, 2, 10),
		join.R(1, 2, 3, 10),
		join.R(4, 4, 4, 12),
	}
	assert.Equal(t, sorted(want), sorted(res.Rows))
	assert.Equal(t, int64(res.Stats.Left.Blocks), left.Decompressions())
}

func TestNewExecutor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero look-ahead", func(c *Config) { c.LookAhead = 0 }, "LookAhead"},
		{"huge look-ahead", func(c *Config) { c.LookAhead = 5000 }, "LookAhead"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "Timeout"},
		{"timeout above max", func(c *Config) { c.Timeout = time.Hour }, "Timeout"},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewExecutor(cfg, WithLogger(logging.NewNopLogger()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestParseKind(t *testing.T) {
	for _, name := range KindNames() {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(kind))
	}
	_, err := ParseKind("cross")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}
