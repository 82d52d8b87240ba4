package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

// ExactMatcher links records across retailers that share an identical,
// non-empty identifier (manufacturer SKU or barcode). Exact links always
// carry confidence 1.0.
type ExactMatcher struct {
	store Store
}

// NewExactMatcher creates an ExactMatcher over the given store.
func NewExactMatcher(store Store) *ExactMatcher {
	return &ExactMatcher{store: store}
}

// Run executes batch exact matching over the full unmatched pool. For each
// identifier field in order (manufacturer SKU, then barcode) it groups every
// value held by unmatched records from at least two retailers under a freshly
// minted group id. Clusters are committed independently: a failed group write
// is reported in the returned report and does not roll back earlier clusters.
func (m *ExactMatcher) Run(ctx context.Context) (*model.ExactReport, error) {
	log := zap.L().With(zap.String("component", "exact_matcher"))
	report := &model.ExactReport{}

	for _, field := range model.ExactMatchFields {
		clusters, err := m.store.IdentifierClusters(ctx, field)
		if err != nil {
			return report, eris.Wrapf(err, "match: exact: clusters for %s", field)
		}
		log.Info("exact pass",
			zap.String("field", string(field)),
			zap.Int("clusters", len(clusters)),
		)

		for _, cluster := range clusters {
			if cluster.RetailerCount < 2 {
				// Same-retailer duplicates are not a match target.
				continue
			}

			records, err := m.store.UnmatchedByIdentifier(ctx, field, cluster.Value)
			if err != nil {
				return report, eris.Wrapf(err, "match: exact: fetch records for %s", field)
			}
			// Re-check against the live rows: a record may have been grouped
			// by an earlier cluster (or a concurrent caller) since the count.
			if len(records) < 2 || countRetailers(records) < 2 {
				continue
			}

			result, err := m.writeGroup(ctx, records, field)
			if err != nil {
				log.Warn("exact group write failed",
					zap.String("field", string(field)),
					zap.String("value", cluster.Value),
					zap.Error(err),
				)
				report.Failed = append(report.Failed, model.GroupFailure{
					MatchedOn: string(field),
					Value:     cluster.Value,
					MemberIDs: recordIDs(records),
					Err:       err.Error(),
				})
				continue
			}
			report.Results = append(report.Results, *result)
		}
	}

	log.Info("exact matching complete",
		zap.Int("groups", len(report.Results)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// MatchProduct runs incremental exact matching for one newly ingested record.
// Fields are tried in order and the first that yields counterparts wins. When
// a counterpart already belongs to a group the record joins that group and
// only the record itself is written; otherwise a fresh group id is minted and
// written to the record and every discovered counterpart. Returns nil when
// the record is already grouped or no field produced a hit.
func (m *ExactMatcher) MatchProduct(ctx context.Context, id int64) (*model.MatchResult, error) {
	rec, err := m.store.GetProduct(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "match: exact: get product %d", id)
	}
	if rec == nil {
		return nil, eris.Errorf("match: exact: product %d not found", id)
	}
	if rec.Matched() {
		return nil, nil
	}

	for _, field := range model.ExactMatchFields {
		value := rec.Identifier(field)
		if value == "" {
			continue
		}

		counterparts, err := m.store.CounterpartsByIdentifier(ctx, field, value, rec.ID, rec.Retailer)
		if err != nil {
			return nil, eris.Wrapf(err, "match: exact: counterparts for %s", field)
		}
		if len(counterparts) == 0 {
			continue
		}

		// An already-grouped counterpart pulls the new record into its group.
		// Note the asymmetry with the batch path, which always mints a fresh
		// id; see DESIGN.md.
		if grouped := firstGrouped(counterparts); grouped != nil {
			if err := m.store.AssignGroup(ctx, []int64{rec.ID}, *grouped.GroupID, 1.0); err != nil {
				return nil, eris.Wrapf(err, "match: exact: join group %s", *grouped.GroupID)
			}
			return exactResult(*grouped.GroupID, field, rec, counterparts), nil
		}

		groupID := uuid.New().String()
		ids := append([]int64{rec.ID}, recordIDs(counterparts)...)
		if err := m.store.AssignGroup(ctx, ids, groupID, 1.0); err != nil {
			return nil, eris.Wrapf(err, "match: exact: write group for %s", field)
		}
		return exactResult(groupID, field, rec, counterparts), nil
	}

	return nil, nil
}

func (m *ExactMatcher) writeGroup(ctx context.Context, records []model.ProductRecord, field model.IdentifierField) (*model.MatchResult, error) {
	groupID := uuid.New().String()
	if err := m.store.AssignGroup(ctx, recordIDs(records), groupID, 1.0); err != nil {
		return nil, err
	}

	candidates := make([]model.MatchedProduct, len(records))
	for i := range records {
		candidates[i] = model.Candidate(&records[i])
	}
	return &model.MatchResult{
		GroupID:    groupID,
		Type:       model.MatchTypeExact,
		Confidence: 1.0,
		MatchedOn:  string(field),
		Candidates: candidates,
	}, nil
}

func exactResult(groupID string, field model.IdentifierField, rec *model.ProductRecord, counterparts []model.ProductRecord) *model.MatchResult {
	candidates := make([]model.MatchedProduct, 0, len(counterparts)+1)
	candidates = append(candidates, model.Candidate(rec))
	for i := range counterparts {
		candidates = append(candidates, model.Candidate(&counterparts[i]))
	}
	return &model.MatchResult{
		GroupID:    groupID,
		Type:       model.MatchTypeExact,
		Confidence: 1.0,
		MatchedOn:  string(field),
		Candidates: candidates,
	}
}

func firstGrouped(records []model.ProductRecord) *model.ProductRecord {
	for i := range records {
		if records[i].Matched() {
			return &records[i]
		}
	}
	return nil
}

func recordIDs(records []model.ProductRecord) []int64 {
	ids := make([]int64, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	return ids
}

func countRetailers(records []model.ProductRecord) int {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		seen[records[i].Retailer] = struct{}{}
	}
	return len(seen)
}
