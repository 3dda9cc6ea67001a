package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rishita2305/smart-waste-swaraj/internal/config"
	"github.com/rishita2305/smart-waste-swaraj/internal/db"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

// CreateListingInput carries the fields needed to create a listing.
type CreateListingInput struct {
	ItemType      models.ItemType       `json:"item_type"`
	WasteCategory *models.WasteCategory `json:"waste_category,omitempty"`
	WasteType     string                `json:"waste_type"`
	Quantity      float64               `json:"quantity"`
	Unit          string                `json:"unit,omitempty"`
	Description   string                `json:"description,omitempty"`
	Location      *models.LocationData  `json:"location"`
	Price         *float64              `json:"price,omitempty"`
	ImageURL      string                `json:"image_url,omitempty"`
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, userID string, input CreateListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID string) (*models.Listing, error)
	SearchListings(ctx context.Context, category, query string, limit int) ([]models.Listing, error)
	CountsByCategory(ctx context.Context) ([]CategoryCount, error)
	AssignCollector(ctx context.Context, listingID, collectorID string) (*models.Listing, error)
	CompleteListing(ctx context.Context, listingID, collectorID string) (*models.Listing, error)
	AddComment(ctx context.Context, listingID, userID, userName, text string) (*models.Comment, error)
	AddImageToListing(ctx context.Context, listingID string, imageKey string) error
	FindListingsByUserID(ctx context.Context, userID string) ([]models.Listing, error)
	CountListingsByUserID(ctx context.Context, userID string) (int64, error)
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListing validates the input and inserts a new pending listing.
// Waste listings require a valid category; old items require a price
// (0 means donation).
func (s *listingService) CreateListing(ctx context.Context, userID string, input CreateListingInput) (*models.Listing, error) {
	if strings.TrimSpace(input.WasteType) == "" {
		return nil, fmt.Errorf("waste type is required")
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than zero")
	}
	if input.Location == nil {
		return nil, fmt.Errorf("location is required")
	}
	if !models.ValidItemType(input.ItemType) {
		return nil, fmt.Errorf("invalid item type: %s", input.ItemType)
	}

	switch input.ItemType {
	case models.ItemTypeWaste:
		if input.WasteCategory == nil || !models.ValidWasteCategory(*input.WasteCategory) {
			return nil, fmt.Errorf("waste listings require a valid waste category")
		}
		input.Price = nil
	case models.ItemTypeOldItem:
		if input.Price == nil || *input.Price < 0 {
			return nil, fmt.Errorf("old item listings require a price (0 for donation)")
		}
		input.WasteCategory = nil
	}

	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()
	geo := input.Location.GeoPoint()

	var newListing *models.Listing
	var err error

	operation := func() error {
		newListing = &models.Listing{
			Base:          models.NewBase(), // ID generated on each attempt
			UserID:        userID,
			ItemType:      input.ItemType,
			WasteCategory: input.WasteCategory,
			WasteType:     strings.TrimSpace(input.WasteType),
			Quantity:      input.Quantity,
			Unit:          input.Unit,
			Description:   input.Description,
			Location:      input.Location,
			GeoLocation:   &geo,
			Price:         input.Price,
			ImageURL:      input.ImageURL,
			Images:        []string{},
			Status:        models.StatusPending,
			Comments:      []models.Comment{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	err = db.Try(operation)
	if err != nil {
		listingIDStr := "<unknown>"
		if newListing != nil {
			listingIDStr = newListing.ID
		}
		return nil, fmt.Errorf("failed to insert new listing for user %s (last attempted listing ID: %s) after multiple retries: %w",
			userID, listingIDStr, err)
	}

	return newListing, nil
}

// FindListingByID finds a non-deleted listing by its ID.
// It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	collection := s.db.Collection(listingsCollection)
	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
	}

	err := collection.FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID, err)
	}
	return &listing, nil
}

// SearchListings returns visible listings matching the map filters: a
// category (all, waste, old_item, or a waste category value) intersected
// with a case-insensitive text query. The filtering itself is pure Go over
// the fetched set; see listing_filter.go.
func (s *listingService) SearchListings(ctx context.Context, category, query string, limit int) ([]models.Listing, error) {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{"deleted": false}
	// Narrow in the DB where the category maps directly onto fields; the
	// text query stays a Go-side post-filter.
	switch category {
	case "", CategoryFilterAll:
	case CategoryFilterWaste:
		filter["item_type"] = models.ItemTypeWaste
	case CategoryFilterOldItem:
		filter["item_type"] = models.ItemTypeOldItem
	default:
		if !models.ValidWasteCategory(models.WasteCategory(category)) {
			return nil, fmt.Errorf("unknown category filter: %s", category)
		}
		filter["waste_category"] = category
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode listing search results: %w", err)
	}

	// Post-filter for the text query, then apply the limit.
	filtered := FilterBySearch(results, query)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// CountsByCategory aggregates visible listings into per-category counts with
// rollup groups, ordered rollups-first then alphabetically.
func (s *listingService) CountsByCategory(ctx context.Context) ([]CategoryCount, error) {
	collection := s.db.Collection(listingsCollection)

	cursor, err := collection.Find(ctx, bson.M{"deleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query listings for counts: %w", err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings for counts: %w", err)
	}

	return CountsByCategory(listings), nil
}

// AssignCollector assigns a collector to a pending waste listing. The status
// transition is a single conditional update, so concurrent attempts resolve
// to exactly one winner; losers get a diagnostic error.
func (s *listingService) AssignCollector(ctx context.Context, listingID, collectorID string) (*models.Listing, error) {
	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":       listingID,
		"deleted":   false,
		"status":    models.StatusPending,
		"item_type": models.ItemTypeWaste,
		"user_id":   bson.M{"$ne": collectorID}, // cannot claim own listing
	}
	update := bson.M{
		"$set": bson.M{
			"status":                models.StatusAssigned,
			"assigned_collector_id": collectorID,
			"updated_at":            now,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("db error assigning collector to listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		// Diagnose why the conditional update missed
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s not found", listingID)
		}
		if checkErr != nil {
			return nil, fmt.Errorf("db error checking listing %s: %w", listingID, checkErr)
		}
		if listing.Deleted {
			return nil, fmt.Errorf("listing %s not found", listingID)
		}
		if listing.ItemType != models.ItemTypeWaste {
			return nil, fmt.Errorf("listing %s is not a waste listing", listingID)
		}
		if listing.UserID == collectorID {
			return nil, fmt.Errorf("cannot assign your own listing")
		}
		if listing.Status != models.StatusPending {
			return nil, fmt.Errorf("listing %s is not pending", listingID)
		}
		return nil, fmt.Errorf("failed to assign collector to listing %s (condition not met)", listingID)
	}

	log.Printf("Listing %s assigned to collector %s", listingID, collectorID)
	return s.FindListingByID(ctx, listingID)
}

// CompleteListing marks an assigned listing as completed. Only the assigned
// collector can complete it; the collector reference is kept on the record.
func (s *listingService) CompleteListing(ctx context.Context, listingID, collectorID string) (*models.Listing, error) {
	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":                   listingID,
		"deleted":               false,
		"status":                models.StatusAssigned,
		"assigned_collector_id": collectorID,
	}
	update := bson.M{
		"$set": bson.M{
			"status":       models.StatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("db error completing listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s not found", listingID)
		}
		if checkErr != nil {
			return nil, fmt.Errorf("db error checking listing %s: %w", listingID, checkErr)
		}
		if listing.Deleted {
			return nil, fmt.Errorf("listing %s not found", listingID)
		}
		if listing.Status == models.StatusCompleted {
			return nil, fmt.Errorf("listing %s is already completed", listingID)
		}
		if listing.Status != models.StatusAssigned {
			return nil, fmt.Errorf("listing %s is not assigned", listingID)
		}
		if listing.AssignedCollectorID == nil || *listing.AssignedCollectorID != collectorID {
			return nil, fmt.Errorf("listing %s is assigned to a different collector", listingID)
		}
		return nil, fmt.Errorf("failed to complete listing %s (condition not met)", listingID)
	}

	log.Printf("Listing %s completed by collector %s", listingID, collectorID)
	return s.FindListingByID(ctx, listingID)
}

// AddComment appends an immutable comment to a listing. UserName is
// denormalized at write time so comments survive account changes.
func (s *listingService) AddComment(ctx context.Context, listingID, userID, userName, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("comment text cannot be empty")
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  userName,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	collection := s.db.Collection(listingsCollection)
	filter := bson.M{"_id": listingID, "deleted": false}
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updated_at": comment.CreatedAt},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("db error adding comment to listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}

	return &comment, nil
}

// AddImageToListing adds a processed image key to a listing's image array.
// It should only be called after the image processing task is complete.
func (s *listingService) AddImageToListing(ctx context.Context, listingID string, imageKey string) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
	}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey}, // Add key if not already present
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to listing %s: %w", imageKey, listingID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s not found or cannot be updated when adding image", listingID)
	}
	if result.ModifiedCount == 0 {
		// Image key might already exist in the array
		fmt.Printf("Image key %s likely already exists for listing %s\n", imageKey, listingID)
	}

	return nil
}

// FindListingsByUserID returns all visible listings posted by a user,
// newest first.
func (s *listingService) FindListingsByUserID(ctx context.Context, userID string) ([]models.Listing, error) {
	coll := s.db.Collection(listingsCollection)
	filter := bson.M{"user_id": userID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// CountListingsByUserID counts a user's visible listings.
func (s *listingService) CountListingsByUserID(ctx context.Context, userID string) (int64, error) {
	coll := s.db.Collection(listingsCollection)
	count, err := coll.CountDocuments(ctx, bson.M{"user_id": userID, "deleted": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count listings for user %s: %w", userID, err)
	}
	return count, nil
}
