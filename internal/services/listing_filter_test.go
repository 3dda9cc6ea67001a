package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

func wasteListing(wasteType string, category models.WasteCategory) models.Listing {
	return models.Listing{
		ItemType:      models.ItemTypeWaste,
		WasteCategory: &category,
		WasteType:     wasteType,
	}
}

func oldItemListing(wasteType string) models.Listing {
	return models.Listing{
		ItemType:  models.ItemTypeOldItem,
		WasteType: wasteType,
	}
}

func TestMatchesCategory(t *testing.T) {
	plastic := wasteListing("PET bottles", models.CategoryRecyclablePlastic)
	chair := oldItemListing("office chair")

	// "all" and the empty string match everything
	assert.True(t, MatchesCategory(&plastic, CategoryFilterAll))
	assert.True(t, MatchesCategory(&chair, CategoryFilterAll))
	assert.True(t, MatchesCategory(&plastic, ""))

	// Item-type filters
	assert.True(t, MatchesCategory(&plastic, CategoryFilterWaste))
	assert.False(t, MatchesCategory(&chair, CategoryFilterWaste))
	assert.True(t, MatchesCategory(&chair, CategoryFilterOldItem))
	assert.False(t, MatchesCategory(&plastic, CategoryFilterOldItem))

	// Waste category values
	assert.True(t, MatchesCategory(&plastic, "recyclable_plastic"))
	assert.False(t, MatchesCategory(&plastic, "biodegradable"))
	// Old items never match a waste category
	assert.False(t, MatchesCategory(&chair, "recyclable_plastic"))

	// A waste listing without a category doesn't match any category value
	uncategorized := models.Listing{ItemType: models.ItemTypeWaste, WasteType: "mixed"}
	assert.False(t, MatchesCategory(&uncategorized, "other"))
	assert.True(t, MatchesCategory(&uncategorized, CategoryFilterWaste))
}

func TestMatchesSearch(t *testing.T) {
	listing := models.Listing{
		ItemType:    models.ItemTypeWaste,
		WasteType:   "Scrap Metal",
		Description: "Mostly copper wiring",
		Location: &models.LocationData{
			Address: "123 MG Road",
			City:    "Pune",
		},
	}

	// Empty and whitespace-only queries match everything
	assert.True(t, MatchesSearch(&listing, ""))
	assert.True(t, MatchesSearch(&listing, "   "))

	// Case-insensitive substring over each searchable field
	assert.True(t, MatchesSearch(&listing, "scrap"))
	assert.True(t, MatchesSearch(&listing, "COPPER"))
	assert.True(t, MatchesSearch(&listing, "mg road"))
	assert.True(t, MatchesSearch(&listing, "pune"))
	assert.True(t, MatchesSearch(&listing, "  Metal "))

	assert.False(t, MatchesSearch(&listing, "plastic"))

	// No location: only waste type and description are searched
	noLocation := models.Listing{WasteType: "glass", Description: "jars"}
	assert.True(t, MatchesSearch(&noLocation, "jar"))
	assert.False(t, MatchesSearch(&noLocation, "pune"))
}

func TestFilterListings_Intersection(t *testing.T) {
	listings := []models.Listing{
		wasteListing("PET bottles", models.CategoryRecyclablePlastic),
		wasteListing("plastic wrap", models.CategoryOther),
		wasteListing("kitchen compost", models.CategoryBiodegradable),
		oldItemListing("plastic chair"),
	}

	// Category only
	waste := FilterListings(listings, CategoryFilterWaste, "")
	assert.Len(t, waste, 3)

	// Query only
	plasticky := FilterListings(listings, CategoryFilterAll, "plastic")
	assert.Len(t, plasticky, 2)

	// Both filters must match
	both := FilterListings(listings, CategoryFilterWaste, "plastic")
	require.Len(t, both, 1)
	assert.Equal(t, "plastic wrap", both[0].WasteType)

	byCategory := FilterListings(listings, "recyclable_plastic", "bottles")
	require.Len(t, byCategory, 1)
	assert.Equal(t, "PET bottles", byCategory[0].WasteType)

	none := FilterListings(listings, CategoryFilterOldItem, "compost")
	assert.Empty(t, none)
}

func TestFilterBySearch(t *testing.T) {
	listings := []models.Listing{
		wasteListing("newspapers", models.CategoryRecyclablePaper),
		wasteListing("cardboard boxes", models.CategoryRecyclablePaper),
	}

	filtered := FilterBySearch(listings, "cardboard")
	require.Len(t, filtered, 1)
	assert.Equal(t, "cardboard boxes", filtered[0].WasteType)

	assert.Len(t, FilterBySearch(listings, ""), 2)
	assert.Empty(t, FilterBySearch(listings, "metal"))
}

func TestCountsByCategory_Ordering(t *testing.T) {
	listings := []models.Listing{
		wasteListing("PET bottles", models.CategoryRecyclablePlastic),
		wasteListing("plastic wrap", models.CategoryRecyclablePlastic),
		wasteListing("old phones", models.CategoryEWaste),
		wasteListing("food scraps", models.CategoryBiodegradable),
		oldItemListing("office chair"),
	}

	counts := CountsByCategory(listings)
	require.Len(t, counts, 6)

	// Rollups first, in fixed order
	assert.Equal(t, CategoryCount{Key: CountKeyAllWaste, Count: 4}, counts[0])
	assert.Equal(t, CategoryCount{Key: CountKeyAllOldItems, Count: 1}, counts[1])

	// Then per-category keys alphabetically
	assert.Equal(t, CategoryCount{Key: "biodegradable", Count: 1}, counts[2])
	assert.Equal(t, CategoryCount{Key: "e_waste", Count: 1}, counts[3])
	assert.Equal(t, CategoryCount{Key: "old_item", Count: 1}, counts[4])
	assert.Equal(t, CategoryCount{Key: "recyclable_plastic", Count: 2}, counts[5])
}

func TestCountsByCategory_Empty(t *testing.T) {
	// Rollups are always present, even with nothing to count
	counts := CountsByCategory(nil)
	require.Len(t, counts, 2)
	assert.Equal(t, CategoryCount{Key: CountKeyAllWaste, Count: 0}, counts[0])
	assert.Equal(t, CategoryCount{Key: CountKeyAllOldItems, Count: 0}, counts[1])
}

func TestCountsByCategory_UncategorizedWaste(t *testing.T) {
	// Waste listings missing a category are counted under "other"
	listings := []models.Listing{
		{ItemType: models.ItemTypeWaste, WasteType: "mixed junk"},
		wasteListing("glass jars", models.CategoryOther),
	}

	counts := CountsByCategory(listings)
	require.Len(t, counts, 3)
	assert.Equal(t, CategoryCount{Key: CountKeyAllWaste, Count: 2}, counts[0])
	assert.Equal(t, CategoryCount{Key: CountKeyAllOldItems, Count: 0}, counts[1])
	assert.Equal(t, CategoryCount{Key: "other", Count: 2}, counts[2])
}
