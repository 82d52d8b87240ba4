// Package model defines the shared data types for the product matching engine.
package model

import "time"

// MatchType indicates which strategy produced a link.
type MatchType string

const (
	MatchTypeExact  MatchType = "exact"
	MatchTypeFuzzy  MatchType = "fuzzy"
	MatchTypeManual MatchType = "manual"
)

// IdentifierField is the closed set of identifier columns the exact matcher
// may select on. Query text is never built from external input; each value
// maps to a fixed column in the store layer.
type IdentifierField string

const (
	FieldManufacturerSKU IdentifierField = "manufacturer_sku"
	FieldUpcEan          IdentifierField = "upc_ean"
)

// ExactMatchFields lists the identifier fields in the order the exact
// matcher tries them: manufacturer SKU first, then barcode.
var ExactMatchFields = []IdentifierField{FieldManufacturerSKU, FieldUpcEan}

// Dimensions holds the five free-text dimension fields of a product listing.
// Each value may carry a unit suffix ("120 cm", `57 7/8"`) or be absent.
type Dimensions struct {
	Width  *string `json:"width,omitempty"`
	Height *string `json:"height,omitempty"`
	Depth  *string `json:"depth,omitempty"`
	Length *string `json:"length,omitempty"`
	Weight *string `json:"weight,omitempty"`
}

// Fields returns the dimension values in a fixed order for pairwise scoring.
func (d Dimensions) Fields() []*string {
	return []*string{d.Width, d.Height, d.Depth, d.Length, d.Weight}
}

// ProductRecord is a single retailer's listing of an item. Matching never
// mutates the retailer-sourced fields; it only writes GroupID and
// MatchConfidence, and only while GroupID is null.
type ProductRecord struct {
	ID            int64      `json:"id"`
	ArticleNumber string     `json:"article_number"`
	Retailer      string     `json:"retailer"`
	Name          *string    `json:"name,omitempty"`
	ManufacturerSKU *string  `json:"manufacturer_sku,omitempty"`
	UpcEan        *string    `json:"upc_ean,omitempty"`
	Dimensions    Dimensions `json:"dimensions"`

	GroupID         *string  `json:"group_id,omitempty"`
	MatchConfidence *float64 `json:"match_confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matched reports whether the record already belongs to a match group.
// Matched records are never reconsidered by the automated matchers.
func (p *ProductRecord) Matched() bool {
	return p.GroupID != nil
}

// Identifier returns the record's value for the given identifier field,
// or "" when absent.
func (p *ProductRecord) Identifier(field IdentifierField) string {
	var v *string
	switch field {
	case FieldManufacturerSKU:
		v = p.ManufacturerSKU
	case FieldUpcEan:
		v = p.UpcEan
	}
	if v == nil {
		return ""
	}
	return *v
}

// DisplayName returns the record's name or "" when absent.
func (p *ProductRecord) DisplayName() string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}
