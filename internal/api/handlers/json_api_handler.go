package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rishita2305/smart-waste-swaraj/internal/auth"
	"github.com/rishita2305/smart-waste-swaraj/internal/cache"
	"github.com/rishita2305/smart-waste-swaraj/internal/config"
	"github.com/rishita2305/smart-waste-swaraj/internal/metrics"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
	"github.com/rishita2305/smart-waste-swaraj/internal/services"
	"github.com/rishita2305/smart-waste-swaraj/internal/storage"
	"github.com/rishita2305/smart-waste-swaraj/internal/tasks"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg                  *config.Config
	db                   *mongo.Database
	rdb                  *redis.Client
	userService          services.IUserService
	listingService       services.IListingService
	storageService       storage.IS3Storage
	enquiryService       services.IEnquiryService
	emailTemplateService services.IEmailTemplateService
	taskClient           IAsynqClient
	collector            *metrics.Collector
	methods              map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
// Accepts interfaces for dependencies.
func NewJsonApiHandler(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	taskClient IAsynqClient,
	userService services.IUserService,
	listingService services.IListingService,
	storageService storage.IS3Storage,
	enquiryService services.IEnquiryService,
	emailTemplateService services.IEmailTemplateService,
	collector *metrics.Collector,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:                  cfg,
		db:                   db,
		rdb:                  rdb,
		taskClient:           taskClient,
		userService:          userService,
		listingService:       listingService,
		storageService:       storageService,
		enquiryService:       enquiryService,
		emailTemplateService: emailTemplateService,
		collector:            collector,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                          h.ping,
		"signup":                        h.signup,
		"login":                         h.login,
		"logout":                        h.logout,
		"refreshToken":                  h.refreshToken,
		"createWasteListing":            h.createWasteListing,
		"assignCollectorToListing":      h.assignCollectorToListing,
		"completeListing":               h.completeListing,
		"addCommentToListing":           h.addCommentToListing,
		"getUploadURL":                  h.getUploadURL,
		"confirmImageUpload":            h.confirmImageUpload,
		"sendEnquiry":                   h.sendEnquiry,
		"changePassword":                h.changePassword,
		"updateNotificationPreferences": h.updateNotificationPreferences,
		"deleteAccount":                 h.deleteAccount,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	var result interface{}
	var apiErr *ApiError

	if handlerFunc, ok := h.methods[req.Method]; ok {
		h.collector.APIRequest(req.Method)
		result, apiErr = handlerFunc(c, req.Arguments)
	} else {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details
type AuthResult struct {
	UserID  *string // nil for guests
	IsAdmin bool
}

// checkAuthForMethod checks if auth is needed and validates/extracts details if so.
// It stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	needsAuth := h.methodRequiresAuth(method)
	var authRes *AuthResult

	if !needsAuth {
		// If method is public, check if an optional Auth header is present anyway
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
			if err == nil {
				userID := claims.UserID
				authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
			} else {
				// Invalid optional token? Log it but proceed as guest
				log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
				authRes = &AuthResult{UserID: nil, IsAdmin: false}
			}
		} else {
			authRes = &AuthResult{UserID: nil, IsAdmin: false}
		}
		ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
		c.Request = c.Request.WithContext(ctx)
		return nil
	}

	// Auth is required
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	tokenString := parts[1]
	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	if h.rdb != nil {
		revoked, revErr := cache.IsJWTRevoked(c.Request.Context(), h.rdb, tokenString)
		if revErr != nil {
			// Fail open on Redis trouble; the token itself is still valid.
			log.Printf("Warning: revocation check failed for method %s: %v", method, revErr)
		} else if revoked {
			return NewApiError("Token has been revoked")
		}
	}

	userID := claims.UserID
	authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	// List authenticated methods
	case "logout",
		"refreshToken",
		"createWasteListing",
		"assignCollectorToListing",
		"completeListing",
		"addCommentToListing",
		"getUploadURL",
		"confirmImageUpload",
		"changePassword",
		"updateNotificationPreferences",
		"deleteAccount":
		return true

	// Public methods by default
	case "ping",
		"signup",
		"login",
		"sendEnquiry": // Guests may enquire; AuthResult is checked in handler
		return false

	default:
		log.Printf("Warning: methodRequiresAuth check for unlisted method '%s', defaulting to false (public)", method)
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects it to be a JSON array with at least one element,
// and unmarshals that first element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil { // 'arguments' field was not provided
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		// 'arguments' was present but wasn't a valid JSON array
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		// 'arguments' was '[]'
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	actualArgData := argArray[0] // Get the first element
	if err := json.Unmarshal(actualArgData, targetVarPtr); err != nil {
		// The first element of the array was not of the expected type
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// notifyListingOwner enqueues a notification email to the listing owner,
// honoring their notification preferences. Failures are logged, never
// surfaced: the triggering operation already succeeded.
func (h *JsonApiHandler) notifyListingOwner(ctx context.Context, listing *models.Listing, prefKind, templateID string, data map[string]interface{}) {
	owner, err := h.userService.FindByID(ctx, listing.UserID)
	if err != nil {
		log.Printf("Warning: could not load owner %s of listing %s for %s notification: %v",
			listing.UserID, listing.ID, templateID, err)
		return
	}
	if !owner.WantsNotification(prefKind) {
		return
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["waste_type"] = listing.WasteType

	task, err := tasks.NewEmailDeliveryTask(tasks.EmailTaskPayload{
		To:         owner.Email,
		TemplateID: templateID,
		Data:       data,
	})
	if err != nil {
		log.Printf("ERROR building %s email task for listing %s: %v", templateID, listing.ID, err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("ERROR enqueuing %s email task for listing %s: %v", templateID, listing.ID, err)
	}
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args // Explicitly ignore unused args
	return "pong", nil
}

// AuthResponse defines the structure for authentication responses
type AuthResponse struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	UserType string `json:"user_type"`
}

func (h *JsonApiHandler) signup(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var input services.SignupInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}

	if len(input.Password) < h.cfg.MinPasswordLen {
		return nil, NewApiError(fmt.Sprintf("Password must be at least %d characters", h.cfg.MinPasswordLen))
	}

	ctx := c.Request.Context()
	user, err := h.userService.CreateUser(ctx, input)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			// Do not reveal whether the account exists beyond the generic
			// credential failure shape.
			log.Printf("Signup attempt with existing email %s", input.Email)
			return false, nil // Data: false, Success: true
		}
		log.Printf("Error creating user %s: %v", input.Email, err)
		return nil, NewApiError(err.Error())
	}

	// Auto-login: issue a token right away so the frontend skips a second
	// round-trip after registration.
	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for new user %s: %v", user.ID, err)
		return nil, NewApiError("Account created but failed to generate session token")
	}

	log.Printf("Signup successful for user %s (%s)", user.ID, user.Email)
	return AuthResponse{
		Token:    token,
		Email:    user.Email,
		ID:       user.ID,
		Name:     user.Name,
		UserType: string(user.UserType),
	}, nil
}

// Define structure for login arguments
type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) login(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LoginArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(reqArgs.Email))

	user, err := h.userService.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Do not reveal if user exists - return generic auth failure
			log.Printf("Login attempt failed: user %s not found", email)
			return false, nil // Data: false, Success: true
		}
		log.Printf("DB error finding user %s for login: %v", email, err)
		return nil, NewApiError("Database error")
	}

	if !auth.CheckPasswordHash(reqArgs.Password, user.PasswordHash) {
		log.Printf("Login attempt failed: invalid password for user %s (%s)", user.ID, email)
		return false, nil // Data: false, Success: true
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s (%s): %v", user.ID, email, err)
		return nil, NewApiError("Failed to generate session token")
	}

	log.Printf("Login successful for user %s (%s)", user.ID, email)
	return AuthResponse{
		Token:    token,
		Email:    user.Email,
		ID:       user.ID,
		Name:     user.Name,
		UserType: string(user.UserType),
	}, nil
}

// logout revokes the presented token for its remaining lifetime. JWTs are
// stateless, so logging out means remembering the token in Redis until it
// would have expired anyway.
func (h *JsonApiHandler) logout(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args // Explicitly ignore unused args
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		// checkAuthForMethod already validated it; treat as already logged out.
		return true, nil
	}

	ttl := h.cfg.JwtTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}

	if h.rdb != nil {
		if err := cache.RevokeJWT(c.Request.Context(), h.rdb, tokenString, ttl); err != nil {
			log.Printf("ERROR revoking token for user %s: %v", claims.UserID, err)
			return nil, NewApiError("Failed to log out")
		}
	}

	log.Printf("User %s logged out", claims.UserID)
	return true, nil
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args // Explicitly ignore unused args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		// This should ideally be caught by methodRequiresAuth, but defensive check.
		return nil, NewApiError("Authentication required for refreshToken")
	}

	// Generate a new token with the same claims but new expiration
	newToken, err := auth.GenerateJWT(*authInfo.UserID, authInfo.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate refreshed JWT for user %s: %v", *authInfo.UserID, err)
		return nil, NewApiError("Failed to refresh session token")
	}

	log.Printf("Refreshed token for user %s", *authInfo.UserID)
	return newToken, nil
}

func (h *JsonApiHandler) createWasteListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required to create listing")
	}
	userID := *authInfo.UserID

	var input services.CreateListingInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	newListing, err := h.listingService.CreateListing(ctx, userID, input)
	if err != nil {
		log.Printf("Error creating listing for user %s: %v", userID, err)
		return nil, NewApiError(err.Error())
	}

	h.collector.ListingCreated(string(newListing.ItemType))
	log.Printf("Created new listing %s for user %s", newListing.ID, userID)
	return newListing, nil
}

func (h *JsonApiHandler) assignCollectorToListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	collectorID := *authInfo.UserID

	var listingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingID); apiErr != nil {
		return nil, apiErr
	}
	if listingID == "" {
		return nil, NewApiError("listing_id is required")
	}

	ctx := c.Request.Context()

	// Only collector accounts may claim listings.
	caller, err := h.userService.FindByID(ctx, collectorID)
	if err != nil {
		log.Printf("Error loading user %s for assignment: %v", collectorID, err)
		return nil, NewApiError("User not found")
	}
	if caller.UserType != models.UserTypeCollector {
		return nil, NewApiError("Only collectors can claim waste listings")
	}

	listing, err := h.listingService.AssignCollector(ctx, listingID, collectorID)
	if err != nil {
		log.Printf("Error assigning collector %s to listing %s: %v", collectorID, listingID, err)
		return nil, NewApiError(err.Error())
	}

	h.collector.ListingAssigned()

	h.notifyListingOwner(ctx, listing, "assignment", "listing_assigned", map[string]interface{}{
		"collector_name": caller.DisplayName(),
	})

	return listing, nil
}

func (h *JsonApiHandler) completeListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	collectorID := *authInfo.UserID

	var listingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingID); apiErr != nil {
		return nil, apiErr
	}
	if listingID == "" {
		return nil, NewApiError("listing_id is required")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.CompleteListing(ctx, listingID, collectorID)
	if err != nil {
		log.Printf("Error completing listing %s by collector %s: %v", listingID, collectorID, err)
		return nil, NewApiError(err.Error())
	}

	h.collector.ListingCompleted()

	collectorName := collectorID
	if collector, findErr := h.userService.FindByID(ctx, collectorID); findErr == nil {
		collectorName = collector.DisplayName()
	}
	h.notifyListingOwner(ctx, listing, "completion", "listing_completed", map[string]interface{}{
		"collector_name": collectorName,
	})

	return listing, nil
}

// Define structure for addCommentToListing arguments
type AddCommentArgs struct {
	ListingID string `json:"listing_id"`
	Text      string `json:"text"`
}

func (h *JsonApiHandler) addCommentToListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userID := *authInfo.UserID

	var reqArgs AddCommentArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.ListingID == "" {
		return nil, NewApiError("listing_id is required")
	}

	ctx := c.Request.Context()
	commenter, err := h.userService.FindByID(ctx, userID)
	if err != nil {
		log.Printf("Error loading commenter %s: %v", userID, err)
		return nil, NewApiError("Failed to add comment")
	}

	comment, err := h.listingService.AddComment(ctx, reqArgs.ListingID, userID, commenter.DisplayName(), reqArgs.Text)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("Error adding comment to listing %s by user %s: %v", reqArgs.ListingID, userID, err)
		return nil, NewApiError(err.Error())
	}

	h.collector.CommentAdded()

	// Notify the owner unless they commented on their own listing.
	if listing, findErr := h.listingService.FindListingByID(ctx, reqArgs.ListingID); findErr == nil && listing.UserID != userID {
		h.notifyListingOwner(ctx, listing, "comment", "new_comment", map[string]interface{}{
			"commenter_name": comment.UserName,
			"comment_text":   comment.Text,
		})
	}

	return comment, nil
}

// Define structure for getUploadURL arguments
type GetUploadURLArgs struct {
	ListingID   string `json:"listing_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userID := *authInfo.UserID

	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (listing_id, filename, content_type)")
	}
	if !strings.HasPrefix(reqArgs.ContentType, "image/") {
		return nil, NewApiError("Only image uploads are supported")
	}

	ctx := c.Request.Context()

	// Only the owner may attach images.
	listing, err := h.listingService.FindListingByID(ctx, reqArgs.ListingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("Error loading listing %s for upload URL: %v", reqArgs.ListingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}
	if listing.UserID != userID {
		return nil, NewApiError("Listing not found or access denied")
	}

	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(ctx,
		userID,
		reqArgs.ListingID,
		reqArgs.Filename,
		reqArgs.ContentType,
	)
	if err != nil {
		log.Printf("Error generating presigned URL for user %s, listing %s: %v", userID, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}

	// Return the URL and the generated key (client needs key for confirmImageUpload)
	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

// Define structure for confirmImageUpload arguments
type ConfirmImageUploadArgs struct {
	ListingID string `json:"listing_id"`
	ObjectKey string `json:"object_key"` // The key returned by getUploadURL
}

func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userID := *authInfo.UserID

	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if reqArgs.ListingID == "" || reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required arguments (listing_id, object_key)")
	}

	ctx := c.Request.Context()

	listing, err := h.listingService.FindListingByID(ctx, reqArgs.ListingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("Error loading listing %s for image confirm: %v", reqArgs.ListingID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}
	if listing.UserID != userID {
		return nil, NewApiError("Listing not found or access denied")
	}

	// Enqueue image processing task on the dedicated queue
	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{
		S3Key:     reqArgs.ObjectKey,
		ListingID: reqArgs.ListingID,
	})
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes, asynq.Queue("images"))

	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("ERROR enqueuing image processing task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}

	log.Printf("Enqueued image processing task ID %s for key %s, listing %s", taskInfo.ID, reqArgs.ObjectKey, reqArgs.ListingID)

	return gin.H{
		"message": "Image upload confirmed, processing scheduled.",
		"task_id": taskInfo.ID,
	}, nil
}

// Define structure for sendEnquiry arguments
type SendEnquiryArgs struct {
	ListingID string   `json:"listing_id"`
	UserEmail string   `json:"user_email"` // Required reply-to
	Message   string   `json:"message"`
	Offer     *float64 `json:"offer"`
}

func (h *JsonApiHandler) sendEnquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, _ := getAuthFromContext(c.Request.Context()) // Auth is optional for this method

	var reqArgs SendEnquiryArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()

	if reqArgs.ListingID == "" {
		return nil, NewApiError("listing_id is required")
	}
	if strings.TrimSpace(reqArgs.Message) == "" && reqArgs.Offer == nil {
		return nil, NewApiError("Enquiry must contain a message or an offer amount")
	}

	// Check the listing exists and is visible before saving anything
	listing, err := h.listingService.FindListingByID(ctx, reqArgs.ListingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("Listing not found")
		}
		log.Printf("DB error finding listing %s for enquiry: %v", reqArgs.ListingID, err)
		return nil, NewApiError("Failed to retrieve listing")
	}

	var senderUserID *string
	if authInfo != nil && authInfo.UserID != nil {
		senderUserID = authInfo.UserID
	}

	newEnquiry, err := h.enquiryService.CreateEnquiry(ctx, reqArgs.ListingID, senderUserID, reqArgs.UserEmail, reqArgs.Message, reqArgs.Offer)
	if err != nil {
		log.Printf("Error creating enquiry for listing %s: %v", reqArgs.ListingID, err)
		return nil, NewApiError(err.Error())
	}

	// Enqueue task to send email to listing owner. The payload carries the
	// enquiry ID so successful delivery flips its Sent flag.
	owner, err := h.userService.FindByID(ctx, listing.UserID)
	if err != nil {
		log.Printf("Error fetching owner %s of listing %s for enquiry email: %v", listing.UserID, listing.ID, err)
		return gin.H{"enquiry_id": newEnquiry.ID, "message": "Enquiry saved, but notification could not be sent."}, nil
	}

	if owner.WantsNotification("enquiry") {
		mailData := map[string]interface{}{
			"waste_type": listing.WasteType,
			"reply_to":   newEnquiry.UserEmail,
			"message":    newEnquiry.Message,
		}
		if newEnquiry.Offer != nil {
			mailData["offer"] = *newEnquiry.Offer
		}
		task, buildErr := tasks.NewEmailDeliveryTask(tasks.EmailTaskPayload{
			To:         owner.Email,
			TemplateID: "new_enquiry",
			Data:       mailData,
			EnquiryID:  newEnquiry.ID,
		})
		if buildErr != nil {
			log.Printf("ERROR building new enquiry email task for listing %s: %v", listing.ID, buildErr)
		} else if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("ERROR enqueuing new enquiry email task for listing %s, enquiry %s: %v", listing.ID, newEnquiry.ID, enqueueErr)
			// Don't fail request, enquiry is saved.
		}
	}

	return gin.H{"enquiry_id": newEnquiry.ID, "message": "Enquiry sent successfully."}, nil
}

// ChangePasswordArgs defines the arguments for the changePassword method
type ChangePasswordArgs struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// changePassword handles password changes for authenticated users
func (h *JsonApiHandler) changePassword(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required to change password")
	}
	userID := *authInfo.UserID

	var reqArgs ChangePasswordArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if len(reqArgs.NewPassword) < h.cfg.MinPasswordLen {
		return nil, NewApiError(fmt.Sprintf("Password must be at least %d characters", h.cfg.MinPasswordLen))
	}

	ctx := c.Request.Context()
	if err := h.userService.ChangePassword(ctx, userID, reqArgs.CurrentPassword, reqArgs.NewPassword); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("User not found")
		}
		log.Printf("Password change failed for user %s: %v", userID, err)
		// Wrong current password reads as a credential failure, not an API error.
		return false, nil // Data: false, Success: true
	}

	log.Printf("Password changed for user %s", userID)
	return true, nil
}

func (h *JsonApiHandler) updateNotificationPreferences(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userID := *authInfo.UserID

	var prefs models.NotificationPreferences
	if apiErr := h.parseRequiredSingleArgFromArray(args, &prefs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.userService.UpdateNotificationPreferences(ctx, userID, prefs); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewApiError("User not found")
		}
		log.Printf("Error updating notification preferences for user %s: %v", userID, err)
		return nil, NewApiError("Failed to update notification preferences")
	}

	return true, nil
}

// deleteAccount soft-deletes the caller's account and listings, then revokes
// the session that performed the deletion.
func (h *JsonApiHandler) deleteAccount(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args // Explicitly ignore unused args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiError("Authentication required")
	}
	userID := *authInfo.UserID

	ctx := c.Request.Context()
	if err := h.userService.DeleteUserAndListings(ctx, userID); err != nil {
		log.Printf("Error deleting account %s: %v", userID, err)
		return nil, NewApiError("Failed to delete account")
	}

	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret); err == nil && h.rdb != nil {
		ttl := h.cfg.JwtTTL
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		if err := cache.RevokeJWT(ctx, h.rdb, tokenString, ttl); err != nil {
			log.Printf("Warning: failed to revoke token after account deletion for user %s: %v", userID, err)
		}
	}

	log.Printf("Account %s deleted", userID)
	return true, nil
}
