package domain

// CategoryLevels is the hierarchical category triple in Algolia's
// hierarchicalMenu convention: lvl1 extends lvl0 with " > ", lvl2 extends
// lvl1 the same way. Nil pointers mean the level is absent.
type CategoryLevels struct {
	Lvl0 *string `json:"lvl0"`
	Lvl1 *string `json:"lvl1"`
	Lvl2 *string `json:"lvl2"`
}

// Document is one product document in the search collection. The `id` field
// is the upsert key: it must be present, non-empty, and stable run-to-run.
//
// Field shapes are rigid where the upstream is sloppy: array fields are
// always arrays, object fields always objects, warranties is an object or
// null but never an array. The hierarchical category levels are emitted both
// as a nested object and as dotted-path scalars because the engine's facet
// API indexes each form separately.
type Document struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	TitleSEO         string `json:"title_seo"`
	ShortDescription string `json:"short_description,omitempty"`
	Brand            string `json:"brand"`
	SKU              string `json:"sku,omitempty"`
	EAN              string `json:"ean,omitempty"`

	Stock      int     `json:"stock"`
	IsActive   bool    `json:"is_active"`
	SalePrice  float64 `json:"sale_price"`
	ListPrice  float64 `json:"list_price"`
	PercentOff float64 `json:"percent_off"`

	FreeShipping  bool `json:"free_shipping"`
	SuperExpress  bool `json:"super_express"`
	IsStoreOnly   bool `json:"is_store_only"`
	IsStorePickup bool `json:"is_store_pickup"`
	Digital       bool `json:"digital"`
	IsBigTicket   bool `json:"is_big_ticket"`
	IsBackorder   bool `json:"is_backorder"`

	RatingAverage float64 `json:"rating_average"`
	RatingCount   int     `json:"rating_count"`

	// RelevanceScore is the engine's default sorting field, always in [0, 100].
	RelevanceScore float64 `json:"relevance_score"`

	Categories     CategoryLevels `json:"categories"`
	CategoriesLvl0 *string        `json:"categories.lvl0"`
	CategoriesLvl1 *string        `json:"categories.lvl1"`
	CategoriesLvl2 *string        `json:"categories.lvl2"`

	// CategoryTree is the cleaned upstream categories value: an array of
	// non-empty inner arrays of {id, name, level} objects.
	CategoryTree []any `json:"category_tree"`

	Pricing  map[string]any `json:"pricing"`
	Shipping map[string]any `json:"shipping"`
	Rating   map[string]any `json:"rating"`
	Features map[string]any `json:"features"`
	Seller   map[string]any `json:"seller"`

	Pictures    []any `json:"pictures"`
	Videos      []any `json:"videos"`
	Volumetries []any `json:"volumetries"`
	Attributes  []any `json:"attributes"`
	Variations  []any `json:"variations"`

	// Warranties is an object or nil, never an array. Upstream sends both.
	Warranties map[string]any `json:"warranties"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Limits on string fields in the index.
const (
	MaxTitleLen            = 500
	MaxShortDescriptionLen = 1000
	MaxTitleSEOLen         = 100
)

// DefaultTitleSEO is used when the upstream title yields an empty slug.
const DefaultTitleSEO = "producto"
