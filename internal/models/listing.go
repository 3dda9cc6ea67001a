package models

import (
	"time"
)

// ItemType distinguishes waste pickups from second-hand items for sale.
type ItemType string

const (
	ItemTypeWaste   ItemType = "waste"
	ItemTypeOldItem ItemType = "old_item"
)

// ValidItemType reports whether t is a known item type.
func ValidItemType(t ItemType) bool {
	return t == ItemTypeWaste || t == ItemTypeOldItem
}

// ListingStatus is the listing lifecycle state. Transitions only move
// forward: pending -> assigned -> completed.
type ListingStatus string

const (
	StatusPending   ListingStatus = "pending"
	StatusAssigned  ListingStatus = "assigned"
	StatusCompleted ListingStatus = "completed"
)

// WasteCategory classifies waste listings for map filtering and counts.
type WasteCategory string

const (
	CategoryBiodegradable     WasteCategory = "biodegradable"
	CategoryNonBiodegradable  WasteCategory = "non_biodegradable"
	CategoryRecyclablePlastic WasteCategory = "recyclable_plastic"
	CategoryRecyclablePaper   WasteCategory = "recyclable_paper"
	CategoryRecyclableMetal   WasteCategory = "recyclable_metal"
	CategoryEWaste            WasteCategory = "e_waste"
	CategoryHazardous         WasteCategory = "hazardous"
	CategoryOther             WasteCategory = "other"
)

// WasteCategories lists every valid category, in display order.
var WasteCategories = []WasteCategory{
	CategoryBiodegradable,
	CategoryNonBiodegradable,
	CategoryRecyclablePlastic,
	CategoryRecyclablePaper,
	CategoryRecyclableMetal,
	CategoryEWaste,
	CategoryHazardous,
	CategoryOther,
}

// ValidWasteCategory reports whether c is a known category.
func ValidWasteCategory(c WasteCategory) bool {
	for _, v := range WasteCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Comment is an embedded, immutable note on a listing. UserName is the
// author's display name at the time of writing.
type Comment struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	UserName  string    `bson:"user_name" json:"user_name"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Listing represents a waste pickup or old-item listing.
//
// WasteCategory is set only for waste listings; Price only for old items
// (0 means donation). AssignedCollectorID is set exactly when the status is
// assigned or completed; completion keeps it so the record shows who did
// the pickup.
type Listing struct {
	Base                `bson:",inline"`
	UserID              string         `bson:"user_id" json:"user_id"`
	ItemType            ItemType       `bson:"item_type" json:"item_type"`
	WasteCategory       *WasteCategory `bson:"waste_category,omitempty" json:"waste_category,omitempty"`
	WasteType           string         `bson:"waste_type" json:"waste_type"`
	Quantity            float64        `bson:"quantity" json:"quantity"`
	Unit                string         `bson:"unit,omitempty" json:"unit,omitempty"`
	Description         string         `bson:"description,omitempty" json:"description,omitempty"`
	Location            *LocationData  `bson:"location" json:"location"`
	GeoLocation         *GeoJSON       `bson:"geo,omitempty" json:"-"` // 2dsphere index shape
	Price               *float64       `bson:"price,omitempty" json:"price,omitempty"`
	ImageURL            string         `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Images              []string       `bson:"images,omitempty" json:"images,omitempty"` // processed S3 keys
	Status              ListingStatus  `bson:"status" json:"status"`
	AssignedCollectorID *string        `bson:"assigned_collector_id,omitempty" json:"assigned_collector_id,omitempty"`
	CompletedAt         *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Comments            []Comment      `bson:"comments" json:"comments"`
	UpdatedAt           time.Time      `bson:"updated_at" json:"updated_at"`
	CreatedAt           time.Time      `bson:"created_at" json:"created_at"`
	Deleted             bool           `bson:"deleted" json:"-"` // Soft delete flag
}
