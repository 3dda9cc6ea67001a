package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/api/handlers"
	"github.com/rishita2305/smart-waste-swaraj/internal/api/middleware"
	"github.com/rishita2305/smart-waste-swaraj/internal/captcha"
	"github.com/rishita2305/smart-waste-swaraj/internal/config"
	"github.com/rishita2305/smart-waste-swaraj/internal/metrics"
	"github.com/rishita2305/smart-waste-swaraj/internal/services"
	"github.com/rishita2305/smart-waste-swaraj/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, collector *metrics.Collector) *gin.Engine {
	// Initialize services needed by API handlers HERE
	userService := services.NewUserService(db)
	listingService := services.NewListingService(db, cfg)
	enquiryService := services.NewEnquiryService(db, cfg)
	emailTemplateService := services.NewEmailTemplateService(db)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders,
		"Authorization", "X-C-T", "X-C-V", "X-BFP", "X-SPA")
	r.Use(cors.New(corsConfig))
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	jsonApiHandler := handlers.NewJsonApiHandler(
		cfg, db, rdb, taskClient,
		userService, listingService, s3StorageService, enquiryService, emailTemplateService,
		collector)
	restListingHandler := handlers.NewRestListingHandler(listingService)
	restUserHandler := handlers.NewRestUserHandler(userService, listingService)

	v1 := r.Group("/v1")
	{
		// All mutations go through the JSON API; the REST routes below are
		// the public read surface (map, profiles, detail pages).
		v1.POST("/api", jsonApiHandler.HandleRequest)

		// Listing routes - specific paths first to avoid conflicts
		v1.GET("/listing/search", restListingHandler.SearchListings)
		v1.GET("/listing/counts", restListingHandler.GetListingCounts)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		// User routes
		v1.GET("/user/:id", restUserHandler.GetUserByID)
		v1.GET("/user/:id/listing", restListingHandler.GetUserListings)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine. It is
// bound to an internal port: shutdown control, test email retrieval, and the
// Prometheus scrape endpoint live here.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, collector *metrics.Collector, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"` // Use RawMessage
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["action_type", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [actionType, email]"})
				return
			}
			actionType := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, actionType)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second) // Short timeout for service call
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				// If redis.Nil, wait and retry
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			// Unmarshal the found JSON data
			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			// Return the full email data object
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
