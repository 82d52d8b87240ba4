package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/model"
)

func strPtr(s string) *string { return &s }

// product builds a minimal test record.
func product(id int64, retailer, article, name string) model.ProductRecord {
	rec := model.ProductRecord{
		ID:            id,
		ArticleNumber: article,
		Retailer:      retailer,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if name != "" {
		rec.Name = &name
	}
	return rec
}

func withSKU(rec model.ProductRecord, sku string) model.ProductRecord {
	rec.ManufacturerSKU = &sku
	return rec
}

func withBarcode(rec model.ProductRecord, code string) model.ProductRecord {
	rec.UpcEan = &code
	return rec
}

func withWidth(rec model.ProductRecord, width string) model.ProductRecord {
	rec.Dimensions.Width = &width
	return rec
}

// fakeStore is an in-memory Store for matcher tests. AssignGroup mirrors the
// real stores' semantics: conditional on every target still being unmatched,
// applied all-or-nothing. Iteration follows insertion order so runs are
// deterministic.
type fakeStore struct {
	records map[int64]*model.ProductRecord
	order   []int64
	assigns [][]int64
	failIDs map[int64]bool
}

func newFakeStore(recs ...model.ProductRecord) *fakeStore {
	s := &fakeStore{
		records: make(map[int64]*model.ProductRecord, len(recs)),
		failIDs: make(map[int64]bool),
	}
	for i := range recs {
		rec := recs[i]
		s.records[rec.ID] = &rec
		s.order = append(s.order, rec.ID)
	}
	return s
}

func (s *fakeStore) failOn(ids ...int64) {
	for _, id := range ids {
		s.failIDs[id] = true
	}
}

func (s *fakeStore) groupOf(id int64) string {
	rec := s.records[id]
	if rec == nil || rec.GroupID == nil {
		return ""
	}
	return *rec.GroupID
}

func (s *fakeStore) GetProduct(_ context.Context, id int64) (*model.ProductRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) IdentifierClusters(_ context.Context, field model.IdentifierField) ([]IdentifierCluster, error) {
	index := make(map[string]int)
	var clusters []IdentifierCluster
	retailers := make(map[string]map[string]struct{})

	for _, id := range s.order {
		rec := s.records[id]
		if rec.Matched() {
			continue
		}
		value := rec.Identifier(field)
		if value == "" {
			continue
		}
		i, ok := index[value]
		if !ok {
			i = len(clusters)
			index[value] = i
			clusters = append(clusters, IdentifierCluster{Value: value})
			retailers[value] = make(map[string]struct{})
		}
		clusters[i].RecordCount++
		retailers[value][rec.Retailer] = struct{}{}
		clusters[i].RetailerCount = len(retailers[value])
	}
	return clusters, nil
}

func (s *fakeStore) UnmatchedByIdentifier(_ context.Context, field model.IdentifierField, value string) ([]model.ProductRecord, error) {
	var out []model.ProductRecord
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.Matched() && rec.Identifier(field) == value {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) CounterpartsByIdentifier(_ context.Context, field model.IdentifierField, value string, excludeID int64, excludeRetailer string) ([]model.ProductRecord, error) {
	var out []model.ProductRecord
	for _, id := range s.order {
		rec := s.records[id]
		if rec.ID == excludeID || rec.Retailer == excludeRetailer {
			continue
		}
		if rec.Identifier(field) == value {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) RetailersWithUnmatchedNamed(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Matched() || rec.DisplayName() == "" || seen[rec.Retailer] {
			continue
		}
		seen[rec.Retailer] = true
		out = append(out, rec.Retailer)
	}
	return out, nil
}

func (s *fakeStore) UnmatchedNamedByRetailer(_ context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	var out []model.ProductRecord
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Matched() || rec.DisplayName() == "" || rec.Retailer != retailer {
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) UnmatchedNamedExcludingRetailer(_ context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	var out []model.ProductRecord
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Matched() || rec.DisplayName() == "" || rec.Retailer == retailer {
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) AssignGroup(_ context.Context, ids []int64, groupID string, confidence float64) error {
	for _, id := range ids {
		if s.failIDs[id] {
			return eris.New("forced write failure")
		}
		rec, ok := s.records[id]
		if !ok || rec.Matched() {
			return eris.Errorf("group conflict on record %d", id)
		}
	}
	for _, id := range ids {
		g := groupID
		c := confidence
		s.records[id].GroupID = &g
		s.records[id].MatchConfidence = &c
	}
	s.assigns = append(s.assigns, append([]int64(nil), ids...))
	return nil
}
