package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/config"
	"github.com/rishita2305/smart-waste-swaraj/internal/db"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

// IEnquiryService defines the interface for enquiry operations.
type IEnquiryService interface {
	CreateEnquiry(ctx context.Context, listingID string, userID *string, userEmail, message string, offer *float64) (*models.Enquiry, error)
	MarkEnquirySent(ctx context.Context, enquiryID string) error
}

const enquiriesCollection = "enquiries"

// enquiryService implements IEnquiryService.
type enquiryService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewEnquiryService creates a new EnquiryService.
func NewEnquiryService(db *mongo.Database, cfg *config.Config) IEnquiryService {
	return &enquiryService{db: db, cfg: cfg}
}

// CreateEnquiry creates a new enquiry document. The owner notification is
// delivered by a background task; Sent stays false until then.
func (s *enquiryService) CreateEnquiry(ctx context.Context, listingID string, userID *string, userEmail, message string, offer *float64) (*models.Enquiry, error) {
	// Basic validation: message or offer must be present
	if message == "" && offer == nil {
		return nil, fmt.Errorf("enquiry must have a message or an offer")
	}
	if userEmail == "" {
		return nil, fmt.Errorf("enquiry requires a reply-to email")
	}

	collection := s.db.Collection(enquiriesCollection)
	now := time.Now().UTC()

	var enquiry *models.Enquiry
	operation := func() error {
		enquiry = &models.Enquiry{
			Base:      models.NewBase(),
			ListingID: listingID,
			UserEmail: userEmail,
			Message:   message,
			Offer:     offer,
			CreatedAt: now,
		}
		if userID != nil {
			enquiry.UserID = *userID
		}
		_, insertErr := collection.InsertOne(ctx, enquiry)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert enquiry for listing %s: %w", listingID, err)
	}
	return enquiry, nil
}

// MarkEnquirySent flags the enquiry once the notification email went out.
func (s *enquiryService) MarkEnquirySent(ctx context.Context, enquiryID string) error {
	collection := s.db.Collection(enquiriesCollection)
	result, err := collection.UpdateOne(ctx,
		bson.M{"_id": enquiryID, "deleted": false},
		bson.M{"$set": bson.M{"sent": true}})
	if err != nil {
		return fmt.Errorf("db error marking enquiry %s sent: %w", enquiryID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
