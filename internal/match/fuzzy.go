package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

// Default fuzzy-matching parameters. A combined score at or above
// DefaultAutoThreshold is written immediately; scores in
// [DefaultReviewThreshold, DefaultAutoThreshold) are surfaced for human
// review instead.
const (
	DefaultAutoThreshold   = 0.85
	DefaultReviewThreshold = 0.70
	DefaultNameWeight      = 0.7
	DefaultDimensionWeight = 0.3
	DefaultPairLimit       = 500

	// prefilterFactor scales the review threshold for the cheap name-only
	// pre-filter: a pair whose name score falls below review*0.8 cannot
	// plausibly reach the review band, so its dimension score is never
	// computed.
	prefilterFactor = 0.8

	// matchedOnFuzzy names the method recorded on fuzzy MatchResults.
	matchedOnFuzzy = "name_dimensions"
)

// FuzzyConfig tunes the fuzzy matcher. The zero value is replaced by the
// spec'd defaults.
type FuzzyConfig struct {
	AutoThreshold   float64 `yaml:"auto_threshold" mapstructure:"auto_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	NameWeight      float64 `yaml:"name_weight" mapstructure:"name_weight"`
	DimensionWeight float64 `yaml:"dimension_weight" mapstructure:"dimension_weight"`
	PairLimit       int     `yaml:"pair_limit" mapstructure:"pair_limit"`
}

// DefaultFuzzyConfig returns the standard thresholds and weights.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		AutoThreshold:   DefaultAutoThreshold,
		ReviewThreshold: DefaultReviewThreshold,
		NameWeight:      DefaultNameWeight,
		DimensionWeight: DefaultDimensionWeight,
		PairLimit:       DefaultPairLimit,
	}
}

func (c FuzzyConfig) withDefaults() FuzzyConfig {
	d := DefaultFuzzyConfig()
	if c.AutoThreshold <= 0 {
		c.AutoThreshold = d.AutoThreshold
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = d.ReviewThreshold
	}
	if c.NameWeight <= 0 {
		c.NameWeight = d.NameWeight
	}
	if c.DimensionWeight <= 0 {
		c.DimensionWeight = d.DimensionWeight
	}
	if c.PairLimit <= 0 {
		c.PairLimit = d.PairLimit
	}
	return c
}

// FuzzyMatcher links records across retailers by a weighted blend of name
// and dimension similarity when no shared identifier exists.
type FuzzyMatcher struct {
	store Store
	cfg   FuzzyConfig
}

// NewFuzzyMatcher creates a FuzzyMatcher; zero fields of cfg fall back to the
// defaults.
func NewFuzzyMatcher(store Store, cfg FuzzyConfig) *FuzzyMatcher {
	return &FuzzyMatcher{store: store, cfg: cfg.withDefaults()}
}

// pairScore is one scored comparison.
type pairScore struct {
	name     float64
	dim      float64
	combined float64
}

// score computes the blended similarity for two records. ok is false when the
// name pre-filter rejected the pair before dimension scoring.
func (f *FuzzyMatcher) score(a, b *model.ProductRecord) (pairScore, bool) {
	var s pairScore
	s.name = NameSimilarity(a.DisplayName(), b.DisplayName())
	if s.name < f.cfg.ReviewThreshold*prefilterFactor {
		return s, false
	}
	s.dim = DimensionSimilarity(a.Dimensions, b.Dimensions)
	s.combined = s.name*f.cfg.NameWeight + s.dim*f.cfg.DimensionWeight
	return s, true
}

// Run executes batch fuzzy matching across every unordered pair of retailers
// that hold unmatched, named records. Assignment is greedy and
// order-dependent: each source record takes the first-encountered best
// candidate at or above the review threshold, and an auto-matched pair is
// consumed for the rest of the run. This is not a globally optimal bipartite
// assignment; see DESIGN.md.
func (f *FuzzyMatcher) Run(ctx context.Context) (*model.FuzzyReport, error) {
	log := zap.L().With(zap.String("component", "fuzzy_matcher"))
	report := &model.FuzzyReport{}

	retailers, err := f.store.RetailersWithUnmatchedNamed(ctx)
	if err != nil {
		return report, eris.Wrap(err, "match: fuzzy: list retailers")
	}
	if len(retailers) < 2 {
		log.Info("fuzzy matching skipped", zap.Int("retailers", len(retailers)))
		return report, nil
	}

	// consumed tracks records auto-matched in this run so no record is ever
	// matched against more than one counterpart per run.
	consumed := make(map[int64]bool)

	for i := 0; i < len(retailers); i++ {
		for j := i + 1; j < len(retailers); j++ {
			if err := f.runPair(ctx, retailers[i], retailers[j], consumed, report); err != nil {
				return report, err
			}
		}
	}

	log.Info("fuzzy matching complete",
		zap.Int("auto_matched", len(report.Results)),
		zap.Int("review_candidates", len(report.Review)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (f *FuzzyMatcher) runPair(ctx context.Context, left, right string, consumed map[int64]bool, report *model.FuzzyReport) error {
	log := zap.L().With(
		zap.String("component", "fuzzy_matcher"),
		zap.String("left", left),
		zap.String("right", right),
	)

	sources, err := f.store.UnmatchedNamedByRetailer(ctx, left, f.cfg.PairLimit)
	if err != nil {
		return eris.Wrapf(err, "match: fuzzy: fetch %s", left)
	}
	targets, err := f.store.UnmatchedNamedByRetailer(ctx, right, f.cfg.PairLimit)
	if err != nil {
		return eris.Wrapf(err, "match: fuzzy: fetch %s", right)
	}

	for si := range sources {
		src := &sources[si]
		if consumed[src.ID] {
			continue
		}

		var best *model.ProductRecord
		var bestScore pairScore
		for ti := range targets {
			tgt := &targets[ti]
			if consumed[tgt.ID] {
				continue
			}
			s, ok := f.score(src, tgt)
			if !ok || s.combined < f.cfg.ReviewThreshold {
				continue
			}
			// Ties keep the first-encountered candidate.
			if best == nil || s.combined > bestScore.combined {
				best = tgt
				bestScore = s
			}
		}
		if best == nil {
			continue
		}

		if bestScore.combined < f.cfg.AutoThreshold {
			report.Review = append(report.Review, model.ReviewCandidate{
				Source:         model.Candidate(src),
				Target:         model.Candidate(best),
				NameScore:      bestScore.name,
				DimensionScore: bestScore.dim,
				CombinedScore:  bestScore.combined,
			})
			continue
		}

		// Both ends leave the pool for this run whether or not the write
		// lands, preserving the one-counterpart-per-run rule.
		consumed[src.ID] = true
		consumed[best.ID] = true

		groupID := uuid.New().String()
		if err := f.store.AssignGroup(ctx, []int64{src.ID, best.ID}, groupID, bestScore.combined); err != nil {
			log.Warn("fuzzy group write failed",
				zap.Int64("source_id", src.ID),
				zap.Int64("target_id", best.ID),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, model.GroupFailure{
				MatchedOn: matchedOnFuzzy,
				MemberIDs: []int64{src.ID, best.ID},
				Err:       err.Error(),
			})
			continue
		}

		report.Results = append(report.Results, model.MatchResult{
			GroupID:    groupID,
			Type:       model.MatchTypeFuzzy,
			Confidence: bestScore.combined,
			MatchedOn:  matchedOnFuzzy,
			Candidates: []model.MatchedProduct{model.Candidate(src), model.Candidate(best)},
		})
	}

	return nil
}

// MatchProduct runs incremental fuzzy matching for one record against the
// unmatched, named pool of every other retailer. The single best candidate at
// or above the auto threshold (if any) is written; every candidate in the
// review band is returned as a ReviewCandidate. A record without a name
// scores 0 against everything and yields empty outputs.
func (f *FuzzyMatcher) MatchProduct(ctx context.Context, id int64) (*model.MatchResult, []model.ReviewCandidate, error) {
	rec, err := f.store.GetProduct(ctx, id)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "match: fuzzy: get product %d", id)
	}
	if rec == nil {
		return nil, nil, eris.Errorf("match: fuzzy: product %d not found", id)
	}
	if rec.Matched() || rec.DisplayName() == "" {
		return nil, nil, nil
	}

	pool, err := f.store.UnmatchedNamedExcludingRetailer(ctx, rec.Retailer, f.cfg.PairLimit)
	if err != nil {
		return nil, nil, eris.Wrap(err, "match: fuzzy: fetch candidate pool")
	}

	var best *model.ProductRecord
	var bestScore pairScore
	var review []model.ReviewCandidate

	for ci := range pool {
		cand := &pool[ci]
		s, ok := f.score(rec, cand)
		if !ok || s.combined < f.cfg.ReviewThreshold {
			continue
		}
		if s.combined >= f.cfg.AutoThreshold {
			if best == nil || s.combined > bestScore.combined {
				best = cand
				bestScore = s
			}
			continue
		}
		review = append(review, model.ReviewCandidate{
			Source:         model.Candidate(rec),
			Target:         model.Candidate(cand),
			NameScore:      s.name,
			DimensionScore: s.dim,
			CombinedScore:  s.combined,
		})
	}

	if best == nil {
		return nil, review, nil
	}

	groupID := uuid.New().String()
	if err := f.store.AssignGroup(ctx, []int64{rec.ID, best.ID}, groupID, bestScore.combined); err != nil {
		return nil, review, eris.Wrap(err, "match: fuzzy: write group")
	}

	return &model.MatchResult{
		GroupID:    groupID,
		Type:       model.MatchTypeFuzzy,
		Confidence: bestScore.combined,
		MatchedOn:  matchedOnFuzzy,
		Candidates: []model.MatchedProduct{model.Candidate(rec), model.Candidate(best)},
	}, review, nil
}
