package services

import (
	"sort"
	"strings"

	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

// Category filter values accepted by the map search, beyond the waste
// category enum itself.
const (
	CategoryFilterAll     = "all"
	CategoryFilterWaste   = "waste"
	CategoryFilterOldItem = "old_item"
)

// Rollup keys in the category counts.
const (
	CountKeyAllWaste    = "all_waste_listings"
	CountKeyAllOldItems = "all_old_items_listings"
)

// CategoryCount is one entry of the aggregated counts, ordered rollups
// first, then category keys alphabetically.
type CategoryCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// MatchesCategory reports whether a listing falls under a category filter:
// "all" matches everything, "waste"/"old_item" match by item type, and a
// waste category value matches waste listings in that category.
func MatchesCategory(l *models.Listing, category string) bool {
	switch category {
	case "", CategoryFilterAll:
		return true
	case CategoryFilterWaste:
		return l.ItemType == models.ItemTypeWaste
	case CategoryFilterOldItem:
		return l.ItemType == models.ItemTypeOldItem
	default:
		return l.WasteCategory != nil && string(*l.WasteCategory) == category
	}
}

// MatchesSearch reports whether a listing matches a free-text query: a
// case-insensitive substring check over the waste type, description, and
// location address/city. An empty query matches everything.
func MatchesSearch(l *models.Listing, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	fields := []string{l.WasteType, l.Description}
	if l.Location != nil {
		fields = append(fields, l.Location.Address, l.Location.City)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// FilterBySearch keeps listings matching the free-text query.
func FilterBySearch(listings []models.Listing, query string) []models.Listing {
	filtered := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if MatchesSearch(&listings[i], query) {
			filtered = append(filtered, listings[i])
		}
	}
	return filtered
}

// FilterListings intersects the category and free-text filters.
func FilterListings(listings []models.Listing, category, query string) []models.Listing {
	filtered := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if MatchesCategory(&listings[i], category) && MatchesSearch(&listings[i], query) {
			filtered = append(filtered, listings[i])
		}
	}
	return filtered
}

// CountsByCategory aggregates listings into per-category counts plus the
// all_waste_listings / all_old_items_listings rollups. Rollup entries come
// first; the rest are sorted alphabetically by key. Categories with no
// listings are omitted, except the rollups which are always present.
func CountsByCategory(listings []models.Listing) []CategoryCount {
	counts := map[string]int{}
	allWaste := 0
	allOldItems := 0

	for i := range listings {
		l := &listings[i]
		switch l.ItemType {
		case models.ItemTypeWaste:
			allWaste++
			key := string(models.CategoryOther)
			if l.WasteCategory != nil {
				key = string(*l.WasteCategory)
			}
			counts[key]++
		case models.ItemTypeOldItem:
			allOldItems++
			counts[CategoryFilterOldItem]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]CategoryCount, 0, len(keys)+2)
	result = append(result,
		CategoryCount{Key: CountKeyAllWaste, Count: allWaste},
		CategoryCount{Key: CountKeyAllOldItems, Count: allOldItems},
	)
	for _, k := range keys {
		result = append(result, CategoryCount{Key: k, Count: counts[k]})
	}
	return result
}
