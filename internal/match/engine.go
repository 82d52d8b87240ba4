package match

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

// Engine bundles the exact and fuzzy matchers behind the operations exposed
// to collaborators: batch sweeps and per-record incremental matching. The
// engine is synchronous; retries and scheduling belong to the caller.
type Engine struct {
	exact *ExactMatcher
	fuzzy *FuzzyMatcher
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store, cfg FuzzyConfig) *Engine {
	return &Engine{
		exact: NewExactMatcher(store),
		fuzzy: NewFuzzyMatcher(store, cfg),
	}
}

// RunExactMatching executes the batch exact sweep.
func (e *Engine) RunExactMatching(ctx context.Context) (*model.ExactReport, error) {
	return e.exact.Run(ctx)
}

// RunFuzzyMatching executes the batch fuzzy sweep.
func (e *Engine) RunFuzzyMatching(ctx context.Context) (*model.FuzzyReport, error) {
	return e.fuzzy.Run(ctx)
}

// MatchProductExact runs incremental exact matching for one record.
func (e *Engine) MatchProductExact(ctx context.Context, id int64) (*model.MatchResult, error) {
	return e.exact.MatchProduct(ctx, id)
}

// MatchProductFuzzy runs incremental fuzzy matching for one record.
func (e *Engine) MatchProductFuzzy(ctx context.Context, id int64) (*model.MatchResult, []model.ReviewCandidate, error) {
	return e.fuzzy.MatchProduct(ctx, id)
}

// Run executes a full batch sweep: exact matching over the unmatched pool,
// then fuzzy matching over what remains.
func (e *Engine) Run(ctx context.Context) (*model.RunReport, error) {
	exact, err := e.exact.Run(ctx)
	if err != nil {
		return &model.RunReport{Exact: exact}, err
	}

	fuzzy, err := e.fuzzy.Run(ctx)
	report := &model.RunReport{Exact: exact, Fuzzy: fuzzy}
	if err != nil {
		return report, err
	}

	zap.L().Info("match run complete",
		zap.Int("exact_groups", len(exact.Results)),
		zap.Int("fuzzy_groups", len(fuzzy.Results)),
		zap.Int("review_candidates", len(fuzzy.Review)),
	)
	return report, nil
}

// MatchProduct runs the incremental path for one newly ingested record:
// exact first, falling through to fuzzy only when no identifier hit.
func (e *Engine) MatchProduct(ctx context.Context, id int64) (*model.MatchResult, []model.ReviewCandidate, error) {
	result, err := e.exact.MatchProduct(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if result != nil {
		return result, nil, nil
	}
	return e.fuzzy.MatchProduct(ctx, id)
}
