package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/auth"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
	"github.com/rishita2305/smart-waste-swaraj/internal/utils"
)

// setupTestDB wraps the shared helper; tests skip when MONGO_URI_TEST is
// not set.
func setupTestDB(t *testing.T, prefix string) *mongo.Database {
	t.Helper()
	return utils.SetupTestDB(t, prefix)
}

func signupInput(email string, userType models.UserType) SignupInput {
	return SignupInput{
		Name:     "Test User",
		Email:    email,
		Password: "password123",
		UserType: userType,
	}
}

func TestUserService_CreateAndFind(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_create")
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, signupInput("test@example.com", models.UserTypeGenerator))
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, models.UserTypeGenerator, user.UserType)
	assert.NotEqual(t, "password123", user.PasswordHash)
	require.NotNil(t, user.NotificationPreferences)
	assert.True(t, user.NotificationPreferences.Assignment)

	fetched, err := svc.FindByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.ID)

	fetchedByID, err := svc.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, fetchedByID.Email)

	// Duplicate email
	_, err = svc.CreateUser(ctx, signupInput("test@example.com", models.UserTypeCollector))
	assert.ErrorIs(t, err, ErrEmailExists)

	// Unknown email
	notFound, err := svc.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	assert.Nil(t, notFound)
}

func TestUserService_CreateUser_NormalizesEmail(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_normalize")
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, signupInput("  MiXeD@Example.COM ", models.UserTypeGenerator))
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", user.Email)

	// The normalized form collides with any casing of the same address.
	_, err = svc.CreateUser(ctx, signupInput("mixed@example.com", models.UserTypeGenerator))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserService_CreateUser_Validation(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_validation")
	svc := NewUserService(db)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, signupInput("not-an-email", models.UserTypeGenerator))
	assert.ErrorContains(t, err, "invalid email")

	_, err = svc.CreateUser(ctx, signupInput("ok@example.com", models.UserType("recycler")))
	assert.ErrorContains(t, err, "invalid user type")
}

func TestUserService_ChangePassword(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_password")
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, signupInput("pw@example.com", models.UserTypeGenerator))
	require.NoError(t, err)

	// Wrong current password
	err = svc.ChangePassword(ctx, user.ID, "wrongpassword", "newpassword1")
	assert.ErrorContains(t, err, "current password is incorrect")

	// Correct current password
	err = svc.ChangePassword(ctx, user.ID, "password123", "newpassword1")
	require.NoError(t, err)

	fetched, err := svc.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("newpassword1", fetched.PasswordHash))
	assert.False(t, auth.CheckPasswordHash("password123", fetched.PasswordHash))
}

func TestUserService_UpdateNotificationPreferences(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_prefs")
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, signupInput("prefs@example.com", models.UserTypeCollector))
	require.NoError(t, err)

	prefs := models.NotificationPreferences{Assignment: true, Completion: false, Comment: false, Enquiry: true}
	err = svc.UpdateNotificationPreferences(ctx, user.ID, prefs)
	require.NoError(t, err)

	fetched, err := svc.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.NotificationPreferences)
	assert.Equal(t, prefs, *fetched.NotificationPreferences)
	assert.True(t, fetched.WantsNotification("assignment"))
	assert.False(t, fetched.WantsNotification("completion"))

	// Unknown user
	err = svc.UpdateNotificationPreferences(ctx, "no-such-user", prefs)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestUserService_DeleteUserAndListings(t *testing.T) {
	db := setupTestDB(t, "testdb_user_service_delete")
	svc := NewUserService(db)
	listingSvc := NewListingService(db, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, signupInput("del@example.com", models.UserTypeGenerator))
	require.NoError(t, err)

	listing, err := listingSvc.CreateListing(ctx, user.ID, wasteListingInput("scrap metal", models.CategoryRecyclableMetal))
	require.NoError(t, err)

	err = svc.DeleteUserAndListings(ctx, user.ID)
	require.NoError(t, err)

	// The user is gone from lookups
	fetched, err := svc.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	assert.Nil(t, fetched)

	// So are their listings
	_, err = listingSvc.FindListingByID(ctx, listing.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	remaining, err := listingSvc.FindListingsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Deleting twice fails
	err = svc.DeleteUserAndListings(ctx, user.ID)
	assert.ErrorContains(t, err, "not found")
}
