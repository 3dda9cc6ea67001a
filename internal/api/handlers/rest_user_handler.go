package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/services"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService    services.IUserService
	listingService services.IListingService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, listingService services.IListingService) *RestUserHandler {
	return &RestUserHandler{
		userService:    userService,
		listingService: listingService,
	}
}

// PublicUser represents the data returned for a user profile. Email and
// location stay private.
type PublicUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UserType     string `json:"user_type"`
	DateJoined   string `json:"date_joined"`
	ListingCount int64  `json:"listing_count"`
}

// GetUserByID handles GET /v1/user/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	listingCount, err := h.listingService.CountListingsByUserID(c.Request.Context(), userID)
	if err != nil {
		// The profile is still useful without the count.
		log.Printf("Warning: failed to count listings for user %s: %v", userID, err)
		listingCount = 0
	}

	publicUser := PublicUser{
		ID:           user.ID,
		Name:         user.DisplayName(),
		UserType:     string(user.UserType),
		DateJoined:   user.CreatedAt.Format("2006-01-02"),
		ListingCount: listingCount,
	}

	c.JSON(http.StatusOK, publicUser)
}
