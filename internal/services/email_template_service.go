package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

// Default email templates used as fallback when not found in database.
// Subjects double as the classification key for the mock Redis sender, so
// keep the "assigned"/"completed"/"comment"/"enquiry" words in them.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"listing_assigned": {
		TemplateID: "listing_assigned",
		Locale:     "en-US",
		Subject:    "Your listing has been assigned a collector",
		Body:       "Good news! {{.collector_name}} will collect \"{{.waste_type}}\". You can coordinate the pickup through the comments on your listing.",
	},
	"listing_completed": {
		TemplateID: "listing_completed",
		Locale:     "en-US",
		Subject:    "Your listing has been completed",
		Body:       "{{.collector_name}} marked \"{{.waste_type}}\" as collected. Thank you for keeping waste out of landfill!",
	},
	"new_comment": {
		TemplateID: "new_comment",
		Locale:     "en-US",
		Subject:    "New comment on your listing",
		Body:       "{{.commenter_name}} commented on \"{{.waste_type}}\":\r\n\r\n{{.comment_text}}",
	},
	"new_enquiry": {
		TemplateID: "new_enquiry",
		Locale:     "en-US",
		Subject:    "New enquiry about your listing",
		Body:       "Someone is interested in \"{{.waste_type}}\". Reply to {{.reply_to}}:\r\n\r\n{{.message}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// If template not found in DB, try to get from defaults
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}

	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	_, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}

	return nil
}
