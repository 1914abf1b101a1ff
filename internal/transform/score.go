package transform

import (
	"math"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// defaultScore is used when the computation cannot produce a finite value.
const defaultScore = 50.0

// relevanceScore derives the engine's default sort key from availability,
// rating, discount and merchandising hints. Each contribution is capped so
// no single signal dominates; the sum is rounded to two decimals and
// clamped to [0, 100].
func relevanceScore(p domain.RawProduct) float64 {
	pricing := asObject(p["pricing"])
	shipping := asObject(p["shipping"])
	rating := asObject(p["rating"])
	features := asObject(p["features"])

	var score float64

	if stock := asFloat(p["stock"]); stock > 0 {
		score += math.Min(stock*0.3, 10)
	}

	if rating != nil {
		if avg, ok := firstPresent(rating, "average_score", "average"); ok {
			score += asFloat(avg) * 3
		}
		if reviews, ok := firstPresent(rating, "total_reviews", "count"); ok {
			if n := asFloat(reviews); n >= 0 {
				score += math.Min(math.Log10(n+1)*3, 10)
			}
		}
	}

	if discount := asFloat(pricing["percentage_discount"]); discount > 0 {
		score += math.Min(discount*0.16, 8)
	}

	if asBool(features["super_express"]) {
		score += 10
	}
	if asBool(shipping["is_free"]) || asBool(shipping["free_shipping"]) {
		score += 7
	}
	if asBool(p["is_active"]) {
		score += 5
	}

	if sales, ok := p["relevance_sales"]; ok {
		score += math.Min(asFloat(sales)*0.15, 12)
	}
	if amount, ok := p["relevance_amount"]; ok {
		score += math.Min(asFloat(amount)*0.08, 8)
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return defaultScore
	}

	score = math.Round(score*100) / 100
	return math.Min(100, math.Max(0, score))
}

// firstPresent returns the first key present in m, in order.
func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
