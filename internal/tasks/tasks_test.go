package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rishita2305/smart-waste-swaraj/internal/config"
	"github.com/rishita2305/smart-waste-swaraj/internal/models"
	"github.com/rishita2305/smart-waste-swaraj/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

type MockEnquiryService struct {
	mock.Mock
}

func (m *MockEnquiryService) CreateEnquiry(ctx context.Context, listingID string, userID *string, userEmail, message string, offer *float64) (*models.Enquiry, error) {
	args := m.Called(ctx, listingID, userID, userEmail, message, offer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Enquiry), args.Error(1)
}

func (m *MockEnquiryService) MarkEnquirySent(ctx context.Context, enquiryID string) error {
	args := m.Called(ctx, enquiryID)
	return args.Error(0)
}

func newEmailTestProcessor(cfg *config.Config, sender *MockEmailSender, enquirySvc *MockEnquiryService, tmplSvc *MockEmailTemplateService) *tasks.TaskProcessor {
	return tasks.NewTaskProcessor(cfg, sender, nil, nil, nil, enquirySvc, tmplSvc, nil, nil, nil)
}

// --- Tests ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	cfg := &config.Config{SmtpFromAddress: "noreply@smartwaste.example"}

	p := newEmailTestProcessor(cfg, mockEmailSender, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "listing_assigned",
		Locale:     "en-US",
		Data: map[string]interface{}{
			"collector_name": "Ravi",
			"waste_type":     "scrap metal",
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	tmpl := &models.EmailTemplate{
		TemplateID: "listing_assigned",
		Locale:     "en-US",
		Subject:    "{{.collector_name}} will collect your listing",
		Body:       "Good news! {{.collector_name}} will collect \"{{.waste_type}}\".",
	}
	mockTmplService.On("GetTemplate", mock.Anything, "listing_assigned", "en-US").Return(tmpl, nil)

	expectedSubject := "Ravi will collect your listing"
	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"owner@example.com"},
		expectedSubject,
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: owner@example.com")
			assert.Contains(t, msgStr, "From: noreply@smartwaste.example")
			assert.Contains(t, msgStr, fmt.Sprintf("Subject: %s", expectedSubject))
			assert.Contains(t, msgStr, `Good news! Ravi will collect "scrap metal".`)
			return true
		}),
	).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	mockTmplService.AssertExpectations(t)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_DefaultsLocale(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	cfg := &config.Config{SmtpFromAddress: "noreply@smartwaste.example"}
	p := newEmailTestProcessor(cfg, mockEmailSender, nil, mockTmplService)

	// No locale in the payload: the handler falls back to en-US
	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "new_comment",
		Data:       map[string]interface{}{"commenter_name": "Asha", "waste_type": "cardboard", "comment_text": "Still available?"},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	tmpl := &models.EmailTemplate{Subject: "New comment", Body: "{{.commenter_name}}: {{.comment_text}}"}
	mockTmplService.On("GetTemplate", mock.Anything, "new_comment", "en-US").Return(tmpl, nil)
	mockEmailSender.On("Send", mock.Anything, []string{"owner@example.com"}, "New comment", mock.Anything).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.NoError(t, err)
	mockTmplService.AssertExpectations(t)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_TemplateNotFound(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	cfg := &config.Config{}
	p := newEmailTestProcessor(cfg, mockEmailSender, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "nonexistent_template",
		Locale:     "en-US",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockTmplService.On("GetTemplate", mock.Anything, "nonexistent_template", "en-US").Return(nil, assert.AnError)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	// A missing template is permanent; retrying would never succeed
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Error should be SkipRetry for template not found")
	mockTmplService.AssertExpectations(t)
	mockEmailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_MarksEnquirySent(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	mockEnquirySvc := new(MockEnquiryService)
	cfg := &config.Config{SmtpFromAddress: "noreply@smartwaste.example"}
	p := newEmailTestProcessor(cfg, mockEmailSender, mockEnquirySvc, mockTmplService)

	enquiryID := "enq-42"
	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "new_enquiry",
		Locale:     "en-US",
		Data:       map[string]interface{}{"reply_to": "buyer@example.com", "message": "Interested", "waste_type": "old chair"},
		EnquiryID:  enquiryID,
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	tmpl := &models.EmailTemplate{Subject: "New enquiry", Body: "Reply to {{.reply_to}}: {{.message}}"}
	mockTmplService.On("GetTemplate", mock.Anything, "new_enquiry", "en-US").Return(tmpl, nil)
	mockEmailSender.On("Send", mock.Anything, []string{"owner@example.com"}, "New enquiry", mock.Anything).Return(nil)
	mockEnquirySvc.On("MarkEnquirySent", mock.Anything, enquiryID).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.NoError(t, err)
	mockEnquirySvc.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_SendFailureIsRetryable(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	mockTmplService := new(MockEmailTemplateService)
	cfg := &config.Config{SmtpFromAddress: "noreply@smartwaste.example"}
	p := newEmailTestProcessor(cfg, mockEmailSender, nil, mockTmplService)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "listing_completed",
		Locale:     "en-US",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	tmpl := &models.EmailTemplate{Subject: "Completed", Body: "Done"}
	mockTmplService.On("GetTemplate", mock.Anything, "listing_completed", "en-US").Return(tmpl, nil)
	mockEmailSender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp timeout"))

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.Error(t, err)
	// Transient delivery failures must stay retryable
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliveryTask_MalformedPayload(t *testing.T) {
	cfg := &config.Config{}
	p := newEmailTestProcessor(cfg, new(MockEmailSender), nil, new(MockEmailTemplateService))

	task := asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not json"))
	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleImageProcessTask_IncompletePayload(t *testing.T) {
	cfg := &config.Config{}
	p := tasks.NewTaskProcessor(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.ImageTaskPayload{S3Key: "uploads/img.jpg"}) // no listing ID
	task := asynq.NewTask(tasks.TypeImageProcess, payloadBytes)

	err := p.HandleImageProcessTask(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleImageProcessTask_MalformedPayload(t *testing.T) {
	cfg := &config.Config{}
	p := tasks.NewTaskProcessor(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	task := asynq.NewTask(tasks.TypeImageProcess, []byte("{not json"))
	err := p.HandleImageProcessTask(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewEmailDeliveryTask(t *testing.T) {
	payload := tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: "listing_assigned",
		Data:       map[string]interface{}{"collector_name": "Ravi"},
	}
	task, err := tasks.NewEmailDeliveryTask(payload)
	assert.NoError(t, err)
	assert.Equal(t, tasks.TypeEmailDelivery, task.Type())

	var decoded tasks.EmailTaskPayload
	assert.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload.To, decoded.To)
	assert.Equal(t, payload.TemplateID, decoded.TemplateID)
}
