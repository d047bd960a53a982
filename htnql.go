// Package htnql turns a declarative report description into an
// executable SQL query over a relational database without the caller
// naming joins. It infers the tables a report needs from the columns
// referenced and synthesizes a join forest from the schema's
// foreign-key graph via a small HTN planner. This file is the Query
// Engine Facade (§4.G): the one entry point most callers use, grounded
// on the teacher's omniql.go/client.go top-level dispatch shape.
package htnql

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/htnql-engine/htnql/agentdsl"
	"github.com/htnql-engine/htnql/cache"
	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/htn"
	"github.com/htnql-engine/htnql/logging"
	"github.com/htnql-engine/htnql/planning"
	"github.com/htnql-engine/htnql/primitives"
	"github.com/htnql-engine/htnql/schema"
	"github.com/htnql-engine/htnql/shape"
	"github.com/htnql-engine/htnql/tracesink"
)

// Executor runs a planned SQL string with its bound values against the
// caller-owned database connection and returns rows unchanged. HTNQL
// never parses result sets.
type Executor func(ctx context.Context, sql string, boundValues []any) ([]map[string]any, error)

// QueryEngine is the facade: construct one per schema, share it across
// concurrent run_report calls.
type QueryEngine struct {
	schema    *schema.Graph
	agents    map[string]*agentdsl.Catalog
	registry  htn.Registry
	execute   Executor
	logger    *zap.Logger
	cache     *cache.PlanCache
	traceSink tracesink.Sink
}

// Option configures optional facade behavior beyond the required schema
// and executor.
type Option func(*QueryEngine)

// WithAgents registers additional named catalogs (or overrides a
// built-in name), matching §6's "agents_config alongside agent=name"
// convention.
func WithAgents(agents map[string]*agentdsl.Catalog) Option {
	return func(qe *QueryEngine) {
		for name, cat := range agents {
			qe.agents[name] = cat
		}
	}
}

// WithLogger overrides the ambient zap logger (default: a no-op logger).
func WithLogger(logger *zap.Logger) Option {
	return func(qe *QueryEngine) { qe.logger = logger }
}

// WithLogging builds the ambient logger from cfg via logging.New and
// installs it, the way WithLogger installs a caller-built one directly.
// A cfg.FilePath routes kernel/planner diagnostics through a rotating
// file writer instead of stderr. A construction failure leaves whatever
// logger was already installed in place.
func WithLogging(cfg logging.Config) Option {
	return func(qe *QueryEngine) {
		logger, err := logging.New(cfg)
		if err != nil {
			return
		}
		qe.logger = logger
	}
}

// WithCache enables plan memoization; without this option every call
// plans from scratch.
func WithCache(c *cache.PlanCache) Option {
	return func(qe *QueryEngine) { qe.cache = c }
}

// WithTraceSink attaches an archival sink invoked after a successful
// RunReportWithTrace call.
func WithTraceSink(sink tracesink.Sink) Option {
	return func(qe *QueryEngine) { qe.traceSink = sink }
}

// New builds a QueryEngine over a fixed schema graph and database
// executor.
func New(g *schema.Graph, execute Executor, opts ...Option) *QueryEngine {
	qe := &QueryEngine{
		schema:   g,
		agents:   agentdsl.Builtins(),
		registry: primitives.New(g),
		execute:  execute,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(qe)
	}
	return qe
}

// RunReport plans spec and executes the resulting SQL, discarding the
// trace.
func (qe *QueryEngine) RunReport(ctx context.Context, spec planning.ReportSpec) ([]map[string]any, error) {
	rows, _, err := qe.run(ctx, spec, false)
	return rows, err
}

// RunReportWithTrace plans spec and executes the resulting SQL,
// returning the kernel's trace alongside the rows.
func (qe *QueryEngine) RunReportWithTrace(ctx context.Context, spec planning.ReportSpec) ([]map[string]any, []htn.TraceStep, error) {
	return qe.run(ctx, spec, true)
}

func (qe *QueryEngine) run(ctx context.Context, spec planning.ReportSpec, wantTrace bool) ([]map[string]any, []htn.TraceStep, error) {
	agentName := spec.Agent
	if agentName == "" {
		agentName = agentdsl.Default
	}
	catalog, ok := qe.agents[agentName]
	if !ok {
		return nil, nil, errs.Agent("unknown agent", agentName)
	}

	entry, err := qe.planCached(ctx, spec, agentName, catalog)
	if err != nil {
		return nil, nil, err
	}

	rows, err := qe.execute(ctx, entry.SQL, entry.BoundValues)
	if err != nil {
		return nil, entry.Trace, errs.Execution(err, "database boundary failed")
	}

	if wantTrace && qe.traceSink != nil {
		if err := qe.traceSink.Write(ctx, spec.Name, entry.Trace); err != nil {
			qe.logger.Warn("trace sink write failed", zap.String("report", spec.Name), zap.Error(err))
		}
	}
	return rows, entry.Trace, nil
}

func (qe *QueryEngine) planCached(ctx context.Context, spec planning.ReportSpec, agentName string, catalog *agentdsl.Catalog) (*cache.Entry, error) {
	compute := func() (*cache.Entry, error) {
		state := planning.New(spec)
		final, trace, err := htn.Plan(ctx, "AnswerReport", state, catalog, qe.registry, qe.logger)
		if err != nil {
			return nil, err
		}
		return &cache.Entry{SQL: final.SQL, BoundValues: final.BoundValues, Trace: trace}, nil
	}
	if qe.cache == nil {
		return compute()
	}
	key := cache.Key(spec, qe.schema.Fingerprint(), agentName)
	return qe.cache.Plan(ctx, key, compute)
}

// SuggestShapes previews bridge-table candidates for a set of tables
// without invoking the HTN kernel at all — a read-only, side-effect-free
// aid the graphical query builder (out of scope here) used independently
// of run_report; see SPEC_FULL.md §11.
func (qe *QueryEngine) SuggestShapes(tables []string) []shape.BridgeCandidate {
	return shape.Suggest(qe.schema, tables)
}

// Schema exposes the read-only schema graph the engine plans against.
func (qe *QueryEngine) Schema() *schema.Graph { return qe.schema }

// wrapTimeout is a small convenience the facade offers callers who want
// a hard deadline on a single run_report call, since the core itself
// imposes none (§5).
func wrapTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithTimeout runs fn with a derived context bounded by d, translating a
// deadline expiry into the same CancelledError cooperative cancellation
// produces.
func WithTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := wrapTimeout(parent, d)
	defer cancel()
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return errs.Cancelled()
	}
	return err
}
