package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/auth"
	"github.com/rishita2305/smart-waste-swaraj/internal/db"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// Loose on purpose: catches obvious typos without rejecting unusual but
// deliverable addresses.
var emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// SignupInput carries the fields needed to create an account.
type SignupInput struct {
	Name     string               `json:"name"`
	Email    string               `json:"email"`
	Password string               `json:"password"`
	UserType models.UserType      `json:"user_type"`
	Location *models.LocationData `json:"location,omitempty"`
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	CreateUser(ctx context.Context, input SignupInput) (*models.User, error)
	UpdateNotificationPreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	DeleteUserAndListings(ctx context.Context, userID string) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// FindByEmail finds a non-deleted user by their email address.
// Returns the user and nil error if found.
// Returns nil and mongo.ErrNoDocuments if not found.
// Returns nil and other error for database issues.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": email, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID, err)
	}
	return &user, nil
}

// CreateUser validates the signup input and inserts a new account.
// Returns ErrEmailExists when the address belongs to a live account.
func (s *userService) CreateUser(ctx context.Context, input SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("invalid email address")
	}
	if !models.ValidUserType(input.UserType) {
		return nil, fmt.Errorf("invalid user type: %s", input.UserType)
	}

	collection := s.db.Collection(usersCollection)

	// Pre-check before inserting; the unique index on email is the real
	// guard against races.
	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", email, err)
	}

	now := time.Now().UTC()
	prefs := models.DefaultNotificationPreferences()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			Base:                    models.NewBase(), // ID generated on each attempt
			Name:                    strings.TrimSpace(input.Name),
			Email:                   email,
			PasswordHash:            hashedPassword,
			UserType:                input.UserType,
			Location:                input.Location,
			NotificationPreferences: &prefs,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	err = db.Try(operation)
	if err != nil {
		// Distinguish an email collision from an _id collision; the latter is
		// retried inside db.Try, the former surfaces as ErrEmailExists.
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email_1") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user for %s after multiple retries: %w", email, err)
	}

	log.Printf("Created %s account %s (%s)", newUser.UserType, newUser.ID, newUser.Email)
	return newUser, nil
}

// UpdateNotificationPreferences replaces the user's notification settings.
func (s *userService) UpdateNotificationPreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) error {
	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{"notification_preferences": prefs, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error updating notification preferences for user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *userService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return fmt.Errorf("current password is incorrect")
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{"password": hashed, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error changing password for user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteUserAndListings performs a soft delete on a user and all their listings.
func (s *userService) DeleteUserAndListings(ctx context.Context, userID string) error {
	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()

	filter := bson.M{"_id": userID, "deleted": false}
	update := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"updated_at": now,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error deleting user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s not found", userID)
	}

	listings := s.db.Collection(listingsCollection)
	listingFilter := bson.M{
		"user_id": userID,
		"deleted": false,
	}
	listingUpdate := bson.M{
		"$set": bson.M{
			"deleted":    true,
			"deleted_at": now,
			"updated_at": now,
		},
	}

	_, err = listings.UpdateMany(ctx, listingFilter, listingUpdate)
	if err != nil {
		return fmt.Errorf("db error deleting listings for user %s: %w", userID, err)
	}

	return nil
}
