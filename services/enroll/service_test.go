package enroll

import (
	"errors"
	"fmt"
	"lms/database"
	"lms/models"
	"lms/payments"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct {
	configured bool
	calls      int
	lastPrice  float64
	lastMeta   payments.CheckoutMetadata
	session    *payments.CheckoutSession
	err        error
}

func (g *stubGateway) Configured() bool { return g.configured }

func (g *stubGateway) CreateCheckoutSession(price float64, meta payments.CheckoutMetadata) (*payments.CheckoutSession, error) {
	g.calls++
	g.lastPrice = price
	g.lastMeta = meta
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

type stubMailer struct {
	receipts []string
}

func (m *stubMailer) SendReceipt(email, name, courseTitle string, amount float64, paymentID string) {
	m.receipts = append(m.receipts, paymentID)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache database per test, so the pool's connections
	// see the same schema while tests stay isolated from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{Name: "Asel", Email: fmt.Sprintf("%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedCourse(t *testing.T, db *gorm.DB, price float64, published bool) *models.Course {
	t.Helper()
	course := models.Course{Title: "Go Fundamentals", Price: price, IsPublished: published}
	if published {
		course.Status = "ACTIVE"
	}
	require.NoError(t, db.Create(&course).Error)
	return &course
}

func completedEvent(sessionID, paymentID string, amount float64, userID, courseID uint) payments.CheckoutCompleted {
	return payments.CheckoutCompleted{
		SessionID:   sessionID,
		PaymentID:   paymentID,
		AmountTotal: amount,
		Metadata: map[string]string{
			"user_id":      fmt.Sprint(userID),
			"course_id":    fmt.Sprint(courseID),
			"course_title": "Go Fundamentals",
		},
	}
}

func countEnrollments(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&n).Error)
	return n
}

func TestEnrollCreatesPendingEnrollment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, "")
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 0, enrollment.Progress)
	assert.Equal(t, 59.99, enrollment.Price)
	assert.Empty(t, enrollment.PaymentMethod)
	assert.Nil(t, enrollment.GatewaySessionID)
	assert.False(t, enrollment.EnrolledAt.IsZero())
}

func TestEnrollCourseNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)

	_, err := svc.Enroll(user.ID, 9999, nil, "")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestEnrollUnpublishedCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 10, false)

	_, err := svc.Enroll(user.ID, course.ID, nil, "")
	assert.ErrorIs(t, err, ErrCourseNotPublished)
}

func TestEnrollDuplicatePairRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 10, true)

	_, err := svc.Enroll(user.ID, course.ID, nil, "")
	require.NoError(t, err)

	_, err = svc.Enroll(user.ID, course.ID, nil, "")
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.EqualValues(t, 1, countEnrollments(t, db))
}

func TestEnrollPriceOverride(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 99.99, true)

	override := 25.0
	enrollment, err := svc.Enroll(user.ID, course.ID, &override, "")
	require.NoError(t, err)
	assert.Equal(t, 25.0, enrollment.Price)
}

// Scenario: free course checkout must enroll directly with no gateway
// call and no payment pending.
func TestCheckoutFreeCourseEnrollsDirectly(t *testing.T) {
	db := setupTestDB(t)
	gateway := &stubGateway{configured: true}
	svc := NewService(db, gateway, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 0, true)

	result, err := svc.CreateCheckout(user.ID, course.ID)
	require.NoError(t, err)

	require.NotNil(t, result.Enrollment)
	assert.Empty(t, result.SessionID)
	assert.Equal(t, models.PaymentMethodFree, result.Enrollment.PaymentMethod)
	assert.Equal(t, models.EnrollmentStatusPending, result.Enrollment.Status)
	assert.Equal(t, 0, result.Enrollment.Progress)
	assert.Zero(t, result.Enrollment.Price)
	assert.Zero(t, gateway.calls, "gateway must not be called for a free course")
}

func TestCheckoutPaidCourseCreatesSessionOnly(t *testing.T) {
	db := setupTestDB(t)
	gateway := &stubGateway{
		configured: true,
		session:    &payments.CheckoutSession{ID: "sess_1", URL: "https://gw.test/c/sess_1"},
	}
	svc := NewService(db, gateway, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	result, err := svc.CreateCheckout(user.ID, course.ID)
	require.NoError(t, err)

	assert.Nil(t, result.Enrollment)
	assert.Equal(t, "sess_1", result.SessionID)
	assert.Equal(t, "https://gw.test/c/sess_1", result.RedirectURL)
	assert.Equal(t, 59.99, gateway.lastPrice)
	assert.Equal(t, user.ID, gateway.lastMeta.UserID)
	assert.Equal(t, course.ID, gateway.lastMeta.CourseID)
	assert.Equal(t, "Go Fundamentals", gateway.lastMeta.CourseTitle)

	// No row until the confirmation webhook arrives
	assert.EqualValues(t, 0, countEnrollments(t, db))
}

func TestCheckoutGatewayUnconfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, &stubGateway{configured: false}, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 20, true)

	_, err := svc.CreateCheckout(user.ID, course.ID)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.EqualValues(t, 0, countEnrollments(t, db))
}

func TestCheckoutGatewayUnreachable(t *testing.T) {
	db := setupTestDB(t)
	gateway := &stubGateway{configured: true, err: errors.New("connection refused")}
	svc := NewService(db, gateway, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 20, true)

	_, err := svc.CreateCheckout(user.ID, course.ID)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestCheckoutAlreadyEnrolled(t *testing.T) {
	db := setupTestDB(t)
	gateway := &stubGateway{configured: true}
	svc := NewService(db, gateway, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 20, true)

	_, err := svc.Enroll(user.ID, course.ID, nil, "")
	require.NoError(t, err)

	_, err = svc.CreateCheckout(user.ID, course.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.Zero(t, gateway.calls)
}

// Scenario: a confirmation for session "sess_1" with settled amount
// 49.99 creates exactly one enrollment priced at the settled amount,
// not the catalog price.
func TestCompleteCheckoutCreatesEnrollment(t *testing.T) {
	db := setupTestDB(t)
	mailer := &stubMailer{}
	svc := NewService(db, nil, mailer)
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	err := svc.CompleteCheckout(completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID))
	require.NoError(t, err)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&enrollment).Error)

	assert.Equal(t, 49.99, enrollment.Price, "settled amount is authoritative over catalog price")
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 0, enrollment.Progress)
	assert.Equal(t, models.PaymentMethodGateway, enrollment.PaymentMethod)
	require.NotNil(t, enrollment.GatewaySessionID)
	assert.Equal(t, "sess_1", *enrollment.GatewaySessionID)
	require.NotNil(t, enrollment.GatewayPaymentID)
	assert.Equal(t, "pay_1", *enrollment.GatewayPaymentID)
	assert.Equal(t, []string{"pay_1"}, mailer.receipts)
}

// Scenario: redelivery of the same confirmation is a no-op.
func TestCompleteCheckoutReplayIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	mailer := &stubMailer{}
	svc := NewService(db, nil, mailer)
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	ev := completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID)
	require.NoError(t, svc.CompleteCheckout(ev))
	require.NoError(t, svc.CompleteCheckout(ev))
	require.NoError(t, svc.CompleteCheckout(ev))

	assert.EqualValues(t, 1, countEnrollments(t, db))
	assert.Len(t, mailer.receipts, 1, "replays must not resend the receipt")
}

// Scenario: a late confirmation for a refunded enrollment must not
// resurrect it, even under a fresh session id.
func TestCompleteCheckoutRefundedGuard(t *testing.T) {
	db := setupTestDB(t)
	mailer := &stubMailer{}
	svc := NewService(db, nil, mailer)
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	require.NoError(t, svc.CompleteCheckout(completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID)))

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&enrollment).Error)
	_, err := svc.Refund(enrollment.ID)
	require.NoError(t, err)

	// Duplicate payment reconciled manually, then refunded; its own
	// confirmation arrives days later under a new session id.
	require.NoError(t, svc.CompleteCheckout(completedEvent("sess_2", "pay_2", 49.99, user.ID, course.ID)))

	var after models.Enrollment
	require.NoError(t, db.Where("id = ?", enrollment.ID).First(&after).Error)
	assert.Equal(t, models.EnrollmentStatusRefunded, after.Status)
	assert.Equal(t, "sess_1", *after.GatewaySessionID, "stale confirmation must not touch the refunded record")
	assert.EqualValues(t, 1, countEnrollments(t, db))
	assert.Len(t, mailer.receipts, 1)
}

// A user can be enrolled through another path (admin backfill, second
// tab) before the confirmation lands; the event must update that
// record, not insert a duplicate.
func TestCompleteCheckoutAttachesToExistingEnrollment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, &stubMailer{})
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	existing, err := svc.Enroll(user.ID, course.ID, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.CompleteCheckout(completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID)))

	assert.EqualValues(t, 1, countEnrollments(t, db))

	var after models.Enrollment
	require.NoError(t, db.Where("id = ?", existing.ID).First(&after).Error)
	require.NotNil(t, after.GatewaySessionID)
	assert.Equal(t, "sess_1", *after.GatewaySessionID)
	assert.Equal(t, models.PaymentMethodGateway, after.PaymentMethod)
	assert.Equal(t, 59.99, after.Price, "attaching gateway ids must not rewrite the existing price")
}

func TestCompleteCheckoutMalformedMetadataAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, &stubMailer{})

	ev := payments.CheckoutCompleted{
		SessionID:   "sess_bad",
		PaymentID:   "pay_bad",
		AmountTotal: 10,
		Metadata:    map[string]string{"user_id": "not-a-number"},
	}
	assert.NoError(t, svc.CompleteCheckout(ev), "redelivery cannot repair bad metadata, so acknowledge")
	assert.EqualValues(t, 0, countEnrollments(t, db))
}

// The store's unique index on the session id is the final arbiter when
// two deliveries race past the pre-insert checks.
func TestGatewaySessionUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	course := seedCourse(t, db, 10, true)
	other := seedCourse(t, db, 20, true)

	sess := "sess_dup"
	first := models.Enrollment{UserID: user.ID, CourseID: course.ID, GatewaySessionID: &sess}
	require.NoError(t, db.Create(&first).Error)

	second := models.Enrollment{UserID: user.ID, CourseID: other.ID, GatewaySessionID: &sess}
	err := db.Create(&second).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

// Scenario: progress 40 -> 100 must complete in a single call.
func TestUpdateProgressAutoCompletes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 0, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, models.PaymentMethodFree)
	require.NoError(t, err)

	_, err = svc.UpdateProgress(enrollment.ID, user.ID, 40)
	require.NoError(t, err)

	updated, err := svc.UpdateProgress(enrollment.ID, user.ID, 100)
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)
	require.NotNil(t, updated.CompletedAt)
}

func TestUpdateProgressBelow100NeverRegressesStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 0, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, models.PaymentMethodFree)
	require.NoError(t, err)

	_, err = svc.UpdateProgress(enrollment.ID, user.ID, 100)
	require.NoError(t, err)

	updated, err := svc.UpdateProgress(enrollment.ID, user.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
	assert.Equal(t, 60, updated.Progress)
}

func TestUpdateProgressOutOfRange(t *testing.T) {
	svc := NewService(setupTestDB(t), nil, nil)

	_, err := svc.UpdateProgress(1, 1, 101)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)

	_, err = svc.UpdateProgress(1, 1, -1)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)
}

func TestUpdateProgressOwnerScoped(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 0, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, models.PaymentMethodFree)
	require.NoError(t, err)

	_, err = svc.UpdateProgress(enrollment.ID, user.ID+1, 50)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestUpdateStatusCompletedStampsProgress(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 0, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, models.PaymentMethodFree)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(enrollment.ID, models.EnrollmentStatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)
	require.NotNil(t, updated.CompletedAt)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := NewService(setupTestDB(t), nil, nil)

	_, err := svc.UpdateStatus(1, "CANCELLED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := NewService(setupTestDB(t), nil, nil)

	_, err := svc.UpdateStatus(42, models.EnrollmentStatusPending)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestRefundIsTerminalAndStatusOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, &stubMailer{})
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	require.NoError(t, svc.CompleteCheckout(completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID)))

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&enrollment).Error)

	refunded, err := svc.Refund(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRefunded, refunded.Status)
	assert.Equal(t, 49.99, refunded.Price, "refund must not alter price")
	require.NotNil(t, refunded.GatewayPaymentID)
	assert.Equal(t, "pay_1", *refunded.GatewayPaymentID, "refund must not strip payment identifiers")

	// Refunding twice signals a caller bug
	_, err = svc.Refund(enrollment.ID)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
}

func TestGetBySessionID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, &stubMailer{})
	user := seedUser(t, db)
	course := seedCourse(t, db, 59.99, true)

	require.NoError(t, svc.CompleteCheckout(completedEvent("sess_1", "pay_1", 49.99, user.ID, course.ID)))

	enrollment, err := svc.GetBySessionID("sess_1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, enrollment.UserID)

	_, err = svc.GetBySessionID("sess_missing")
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestDeleteAllowsReEnrollment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)
	user := seedUser(t, db)
	course := seedCourse(t, db, 10, true)

	enrollment, err := svc.Enroll(user.ID, course.ID, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(enrollment.ID))
	assert.EqualValues(t, 0, countEnrollments(t, db))

	// Hard delete frees the (user, course) slot
	_, err = svc.Enroll(user.ID, course.ID, nil, "")
	assert.NoError(t, err)
}

func TestDeleteNotFound(t *testing.T) {
	svc := NewService(setupTestDB(t), nil, nil)
	assert.ErrorIs(t, svc.Delete(77), ErrEnrollmentNotFound)
}
