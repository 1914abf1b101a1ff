package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type browseRequest struct {
	Query   string `validate:"max=200"`
	Page    int    `validate:"gte=0"`
	PerPage int    `validate:"gte=1,lte=100"`
	Sort    string `validate:"omitempty,oneof=relevance price_asc price_desc"`
}

func TestValidate_OK(t *testing.T) {
	err := Validate(browseRequest{Query: "laptop", Page: 0, PerPage: 20, Sort: "relevance"})
	assert.NoError(t, err)
}

func TestValidate_FieldErrors(t *testing.T) {
	err := Validate(browseRequest{Page: -1, PerPage: 500, Sort: "alphabetical"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Contains(t, fields, "Page")
	assert.Contains(t, fields, "PerPage")
	assert.Contains(t, fields, "Sort")
	assert.Contains(t, fields["PerPage"], "must be at most 100")
}
