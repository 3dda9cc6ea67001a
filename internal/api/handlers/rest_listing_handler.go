package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/models"
	"github.com/rishita2305/smart-waste-swaraj/internal/services"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
	}
}

// SearchListings handles GET /v1/listing/search. The map view drives this
// endpoint: category narrows by item type or waste category, q is a
// case-insensitive text match, and the two intersect.
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	category := c.DefaultQuery("category", services.CategoryFilterAll)
	query := c.Query("q")
	limitStr := c.DefaultQuery("limit", "50")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	listings, err := h.listingService.SearchListings(c.Request.Context(), category, query, limit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusOK, gin.H{"data": []interface{}{}})
			return
		}
		// Unknown category filters surface as a client error
		if strings.HasPrefix(err.Error(), "unknown category") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// GetListingCounts handles GET /v1/listing/counts. Rollup groups come first,
// then waste categories alphabetically.
func (h *RestListingHandler) GetListingCounts(c *gin.Context) {
	counts, err := h.listingService.CountsByCategory(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate listing counts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": counts})
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID := c.Param("id")
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		}
		return
	}

	c.JSON(http.StatusOK, listing)
}

// GetUserListings handles GET /v1/user/:id/listing
func (h *RestListingHandler) GetUserListings(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	listings, err := h.listingService.FindListingsByUserID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	c.JSON(http.StatusOK, listings)
}
