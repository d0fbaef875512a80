package enrollmentController

import (
	"bytes"
	"fmt"
	"lms/config"
	"lms/database"
	"lms/models"
	"lms/payments"
	"lms/services/enroll"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_handler_test"

func setupWebhookApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	config.AppConfig = &config.Config{PayWebhookSecret: webhookSecret}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.Database = database.DbInstance{Db: db}

	ct := NewController(enroll.NewService(db, nil, nil))

	app := fiber.New()
	app.Post("/payments/webhook", ct.HandleGatewayWebhook)
	return app, db
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(payments.SignatureHeader, signature)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func seedWebhookFixtures(t *testing.T, db *gorm.DB) (*models.User, *models.Course) {
	t.Helper()
	user := models.User{Name: "Dana", Email: fmt.Sprintf("%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	course := models.Course{Title: "Go Fundamentals", Price: 59.99, IsPublished: true, Status: "ACTIVE"}
	require.NoError(t, db.Create(&course).Error)
	return &user, &course
}

func completedPayload(sessionID string, userID, courseID uint) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "checkout.session.completed",
		"data": {
			"id": %q,
			"payment_id": "pay_1",
			"amount_total": 49.99,
			"metadata": {"user_id": "%d", "course_id": "%d", "course_title": "Go Fundamentals"}
		}
	}`, sessionID, userID, courseID))
}

func TestWebhookSignedCompletionCreatesEnrollment(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedWebhookFixtures(t, db)

	payload := completedPayload("sess_1", user.ID, course.ID)
	resp := postWebhook(t, app, payload, payments.Sign(payload, webhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&enrollment).Error)
	assert.Equal(t, 49.99, enrollment.Price)

	// Redelivery acknowledges without a second row
	resp = postWebhook(t, app, payload, payments.Sign(payload, webhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	db.Model(&models.Enrollment{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestWebhookInvalidSignatureAcknowledgedButIgnored(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedWebhookFixtures(t, db)

	payload := completedPayload("sess_1", user.ID, course.ID)

	// Acknowledged so the gateway stops redelivering, but not processed
	resp := postWebhook(t, app, payload, payments.Sign(payload, "whsec_wrong"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postWebhook(t, app, payload, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	db.Model(&models.Enrollment{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestWebhookExpiredSessionAcknowledged(t *testing.T) {
	app, db := setupWebhookApp(t)

	payload := []byte(`{"type": "checkout.session.expired", "data": {"id": "sess_gone"}}`)
	resp := postWebhook(t, app, payload, payments.Sign(payload, webhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	db.Model(&models.Enrollment{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	app, _ := setupWebhookApp(t)

	payload := []byte(`{"type": "payout.created", "data": {"id": "po_1"}}`)
	resp := postWebhook(t, app, payload, payments.Sign(payload, webhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookMalformedPayloadAcknowledged(t *testing.T) {
	app, _ := setupWebhookApp(t)

	payload := []byte(`{"data": {"id": "sess_1"}}`)
	resp := postWebhook(t, app, payload, payments.Sign(payload, webhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
