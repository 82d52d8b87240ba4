package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestProductRecord_Matched(t *testing.T) {
	var p ProductRecord
	assert.False(t, p.Matched())

	p.GroupID = strPtr("g1")
	assert.True(t, p.Matched())
}

func TestProductRecord_Identifier(t *testing.T) {
	p := ProductRecord{
		ManufacturerSKU: strPtr("SKU-100"),
	}
	assert.Equal(t, "SKU-100", p.Identifier(FieldManufacturerSKU))
	assert.Equal(t, "", p.Identifier(FieldUpcEan))
	assert.Equal(t, "", p.Identifier(IdentifierField("bogus")))
}

func TestProductRecord_DisplayName(t *testing.T) {
	var p ProductRecord
	assert.Equal(t, "", p.DisplayName())

	p.Name = strPtr("Billy Bookcase")
	assert.Equal(t, "Billy Bookcase", p.DisplayName())
}

func TestExactMatchFields_Order(t *testing.T) {
	assert.Equal(t, []IdentifierField{FieldManufacturerSKU, FieldUpcEan}, ExactMatchFields)
}

func TestDimensions_FieldsOrder(t *testing.T) {
	d := Dimensions{Width: strPtr("w"), Weight: strPtr("kg")}
	fields := d.Fields()
	assert.Len(t, fields, 5)
	assert.Equal(t, "w", *fields[0])
	assert.Nil(t, fields[1])
	assert.Equal(t, "kg", *fields[4])
}
