// Package transform maps weakly typed upstream products into rigidly shaped
// index documents. Every rule degrades instead of failing: the only fatal
// condition for a product is a missing identifier.
package transform

import (
	"fmt"
	"strings"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/slug"
)

// Error is a per-product transform failure. The product is excluded from
// its batch; siblings proceed.
type Error struct {
	ProductID string
	Reason    string
}

func (e *Error) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("transform: %s", e.Reason)
	}
	return fmt.Sprintf("transform product %s: %s", e.ProductID, e.Reason)
}

// Product maps one upstream product to one index document.
//
// The document id is str(id ?? external_id) and is the upsert key; when
// both are absent the transform fails. All other rules coerce: wrong-shaped
// arrays become [], wrong-shaped objects become {}, warranties collapses to
// object-or-null, strings are length-bounded and the relevance score is
// clamped to [0, 100].
func Product(p domain.RawProduct) (*domain.Document, error) {
	id := asString(p["id"])
	if id == "" {
		id = asString(p["external_id"])
	}
	if id == "" {
		return nil, &Error{Reason: "missing id and external_id"}
	}

	pricing := asObjectOrEmpty(p["pricing"])
	shipping := asObjectOrEmpty(p["shipping"])
	rating := asObjectOrEmpty(p["rating"])
	features := asObjectOrEmpty(p["features"])

	title := truncate(strings.TrimSpace(asString(p["title"])), domain.MaxTitleLen)

	titleSEO := strings.TrimSpace(asString(p["title_seo"]))
	if titleSEO == "" {
		titleSEO = slug.Generate(title)
	}
	titleSEO = truncate(titleSEO, domain.MaxTitleSEOLen)
	if titleSEO == "" {
		titleSEO = domain.DefaultTitleSEO
	}

	salePriceRaw, _ := firstPresent(pricing, "sales_price", "sale_price")

	levels := hierarchy(p["categories"])

	ratingAvg, _ := firstPresent(rating, "average_score", "average")
	ratingCount, _ := firstPresent(rating, "total_reviews", "count")

	doc := &domain.Document{
		ID:               id,
		Title:            title,
		TitleSEO:         titleSEO,
		ShortDescription: truncate(asString(p["short_description"]), domain.MaxShortDescriptionLen),
		Brand:            asString(p["brand"]),
		SKU:              asString(p["sku"]),
		EAN:              asString(p["ean"]),

		Stock:      asInt(p["stock"]),
		IsActive:   asBool(p["is_active"]),
		SalePrice:  asFloat(salePriceRaw),
		ListPrice:  asFloat(pricing["list_price"]),
		PercentOff: asFloat(pricing["percentage_discount"]),

		FreeShipping:  asBool(shipping["is_free"]) || asBool(shipping["free_shipping"]),
		SuperExpress:  asBool(features["super_express"]),
		IsStoreOnly:   asBool(p["is_store_only"]) || asBool(features["is_store_only"]),
		IsStorePickup: asBool(p["is_store_pickup"]) || asBool(features["is_store_pickup"]),
		Digital:       asBool(p["digital"]) || asBool(features["digital"]),
		IsBigTicket:   asBool(p["is_big_ticket"]) || asBool(features["is_big_ticket"]),
		IsBackorder:   asBool(p["is_backorder"]) || asBool(features["is_backorder"]),

		RatingAverage: asFloat(ratingAvg),
		RatingCount:   asInt(ratingCount),

		RelevanceScore: relevanceScore(p),

		Categories:     levels,
		CategoriesLvl0: levels.Lvl0,
		CategoriesLvl1: levels.Lvl1,
		CategoriesLvl2: levels.Lvl2,
		CategoryTree:   cleanCategoryTree(p["categories"]),

		Pricing:  pricing,
		Shipping: shipping,
		Rating:   rating,
		Features: features,
		Seller:   asObjectOrEmpty(p["seller"]),

		Pictures:    keepPictures(p["pictures"]),
		Videos:      cleanArray(p["videos"]),
		Volumetries: cleanArray(p["volumetries"]),
		Attributes:  keepAttributes(p["attributes"]),
		Variations:  cleanArray(p["variations"]),

		Warranties: normalizeWarranties(p["warranties"]),

		CreatedAt: asString(p["created_at"]),
		UpdatedAt: asString(p["updated_at"]),
	}

	return doc, nil
}

// normalizeWarranties collapses the polymorphic upstream value to an object
// or nil. Arrays contribute their first object element only.
func normalizeWarranties(v any) map[string]any {
	switch w := v.(type) {
	case map[string]any:
		return w
	case []any:
		if len(w) == 0 {
			return nil
		}
		return asObject(w[0])
	default:
		return nil
	}
}

// keepAttributes keeps only objects carrying both a name and a value.
func keepAttributes(v any) []any {
	in := asArray(v)
	out := make([]any, 0, len(in))
	for _, item := range in {
		obj := asObject(item)
		if obj == nil {
			continue
		}
		if obj["name"] == nil || obj["value"] == nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

// keepPictures keeps only objects carrying a source.
func keepPictures(v any) []any {
	in := asArray(v)
	out := make([]any, 0, len(in))
	for _, item := range in {
		obj := asObject(item)
		if obj == nil || obj["source"] == nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

// asObjectOrEmpty is asObject with missing and wrong-shaped values
// normalized to {} so object-typed document fields never serialize as null.
func asObjectOrEmpty(v any) map[string]any {
	if m := asObject(v); m != nil {
		return m
	}
	return map[string]any{}
}
