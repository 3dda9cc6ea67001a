package models

import (
	"time"
)

// Enquiry represents a contact-seller message about an old-item listing.
type Enquiry struct {
	Base      `bson:",inline"`
	ListingID string    `bson:"listing_id" json:"listing_id"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"` // ID of user making the enquiry (if logged in)
	UserEmail string    `bson:"user_email" json:"user_email"`               // Reply-to email provided
	Offer     *float64  `bson:"offer,omitempty" json:"offer,omitempty"`     // Optional offer amount
	Message   string    `bson:"message" json:"message"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	Sent      bool      `bson:"sent" json:"sent"` // False initially, true after the background task emails the owner
	Deleted   bool      `bson:"deleted" json:"-"` // Soft delete flag
}
