package domain

// RawProduct is one product as the upstream catalog API sends it. The
// upstream payload is weakly typed: fields are optional and several are
// polymorphic (warranties may be an object or an array, categories may be
// an array of arrays or a flat array). The raw shape is kept as a generic
// map and collapsed into a Document at the transform boundary.
type RawProduct map[string]any

// Pagination is the upstream page descriptor. Its absence on a response
// means there are no more pages.
type Pagination struct {
	PageCount      int `json:"pageCount"`
	TotalItemCount int `json:"totalItemCount"`
}

// ProductPage is one fetched page of the upstream catalog.
type ProductPage struct {
	Products   []RawProduct
	Pagination *Pagination
}

// HasMorePages reports whether the upstream indicated pages beyond the given one.
func (p *ProductPage) HasMorePages(current int) bool {
	if p.Pagination == nil {
		return false
	}
	return current < p.Pagination.PageCount
}
