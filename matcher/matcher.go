package matcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"monitor-pricewatch/models"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	// Dell model codes such as s2721h, p2422h, u2723qe, aw3423dwf
	modelCode = regexp.MustCompile(`\b[a-z]{1,3}\d{4}[a-z]{0,3}\b`)
)

// noise words that every monitor listing shares
var stopWords = map[string]bool{
	"dell": true, "monitor": true, "monitors": true, "display": true, "the": true, "with": true,
}

// Suggestion proposes an index entry linking a reseller record to a manufacturer product
type Suggestion struct {
	Retailer     string
	RetailerSKU  string
	RetailerName string
	Product      string
	Score        float64
}

// Normalize lower-cases a product name and strips punctuation and shared noise words
func Normalize(name string) string {
	tokens := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(name), " "))
	kept := tokens[:0]
	for _, t := range tokens {
		if !stopWords[t] {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity scores two product names in [0, 1]. A shared model code is a certain match.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}

	codes := make(map[string]bool)
	for _, code := range modelCode.FindAllString(na, -1) {
		codes[code] = true
	}
	for _, code := range modelCode.FindAllString(nb, -1) {
		if codes[code] {
			return 1
		}
	}

	return matchr.JaroWinkler(na, nb, false)
}

// Suggest proposes the most similar manufacturer product for every reseller record whose SKU
// is not yet referenced by the index. Suggestions below threshold are dropped.
func Suggest(index []models.IndexEntry, manufacturer *models.Catalog, resellers []*models.Catalog, threshold float64) []Suggestion {
	var suggestions []Suggestion

	for _, reseller := range resellers {
		known := make(map[string]bool)
		for _, entry := range index {
			if id := entry.RetailerIDs[reseller.Retailer]; id != "" {
				known[id] = true
			}
		}

		for _, record := range reseller.Records {
			if record.SKU == "" || known[record.SKU] {
				continue
			}

			var best float64
			var bestProduct string
			for _, product := range manufacturer.Records {
				score := Similarity(record.Name, product.Name)
				if score > best {
					best = score
					bestProduct = product.Name
				}
			}

			if best >= threshold && bestProduct != "" {
				suggestions = append(suggestions, Suggestion{
					Retailer:     reseller.Retailer,
					RetailerSKU:  record.SKU,
					RetailerName: record.Name,
					Product:      bestProduct,
					Score:        best,
				})
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		if suggestions[i].Retailer != suggestions[j].Retailer {
			return suggestions[i].Retailer < suggestions[j].Retailer
		}
		return suggestions[i].RetailerSKU < suggestions[j].RetailerSKU
	})

	return suggestions
}
