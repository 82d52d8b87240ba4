package model

// MatchedProduct identifies one member of a match group in engine output.
type MatchedProduct struct {
	ID            int64   `json:"id"`
	ArticleNumber string  `json:"article_number"`
	Name          *string `json:"name,omitempty"`
	Retailer      string  `json:"retailer"`
}

// Candidate converts a full record to its output identity.
func Candidate(p *ProductRecord) MatchedProduct {
	return MatchedProduct{
		ID:            p.ID,
		ArticleNumber: p.ArticleNumber,
		Name:          p.Name,
		Retailer:      p.Retailer,
	}
}

// MatchResult is the engine's output value for one successful link.
type MatchResult struct {
	GroupID    string           `json:"group_id"`
	Type       MatchType        `json:"type"`
	Confidence float64          `json:"confidence"`
	MatchedOn  string           `json:"matched_on"` // identifier field or "name_dimensions"
	Candidates []MatchedProduct `json:"candidates"`
}

// ReviewCandidate is a pairwise fuzzy comparison whose combined score fell in
// the review band [review, auto). It is a pure data value surfaced to the
// admin review flow; the engine never persists it.
type ReviewCandidate struct {
	Source         MatchedProduct `json:"source"`
	Target         MatchedProduct `json:"target"`
	NameScore      float64        `json:"name_score"`
	DimensionScore float64        `json:"dimension_score"`
	CombinedScore  float64        `json:"combined_score"`
}

// GroupFailure records a cluster whose group write failed. Failures are
// per-cluster: earlier commits from the same run stand.
type GroupFailure struct {
	MatchedOn string  `json:"matched_on"`
	Value     string  `json:"value,omitempty"`
	MemberIDs []int64 `json:"member_ids"`
	Err       string  `json:"error"`
}

// ExactReport is the outcome of a batch exact-matching run.
type ExactReport struct {
	Results []MatchResult  `json:"results"`
	Failed  []GroupFailure `json:"failed,omitempty"`
}

// FuzzyReport is the outcome of a batch fuzzy-matching run.
type FuzzyReport struct {
	Results []MatchResult     `json:"results"`
	Review  []ReviewCandidate `json:"review,omitempty"`
	Failed  []GroupFailure    `json:"failed,omitempty"`
}

// RunReport combines the exact and fuzzy stages of one full batch sweep.
type RunReport struct {
	Exact *ExactReport `json:"exact"`
	Fuzzy *FuzzyReport `json:"fuzzy"`
}
