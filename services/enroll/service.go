package enroll

import (
	"errors"
	"lms/models"
	"lms/payments"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Gateway is the slice of the payment client the engine needs.
type Gateway interface {
	Configured() bool
	CreateCheckoutSession(price float64, meta payments.CheckoutMetadata) (*payments.CheckoutSession, error)
}

// Notifier sends the payment receipt. Fire-and-forget from the
// engine's perspective: implementations must never block or fail the
// caller.
type Notifier interface {
	SendReceipt(email, name, courseTitle string, amount float64, paymentID string)
}

// Service owns every enrollment state transition. It is the single
// writer of enrollment status; all three entry points (direct enroll,
// checkout creation, webhook confirmation) converge here. The service
// holds no state of its own, so any number of instances may run
// concurrently: the store's unique indexes are the final arbiter of
// the uniqueness invariants, and the pre-insert checks are only
// fast-path courtesies.
type Service struct {
	db      *gorm.DB
	gateway Gateway
	mailer  Notifier
}

func NewService(db *gorm.DB, gateway Gateway, mailer Notifier) *Service {
	return &Service{db: db, gateway: gateway, mailer: mailer}
}

// CheckoutResult is the outcome of a checkout request: either a
// gateway session to redirect to, or (for free courses) an enrollment
// created on the spot.
type CheckoutResult struct {
	Enrollment  *models.Enrollment `json:"enrollment,omitempty"`
	SessionID   string             `json:"session_id,omitempty"`
	RedirectURL string             `json:"redirect_url,omitempty"`
}

// Enroll creates an enrollment directly, with no gateway involvement.
// Used for free courses and administrative/backfill enrollment. A nil
// priceOverride means the catalog price.
func (s *Service) Enroll(userID, courseID uint, priceOverride *float64, paymentMethod string) (*models.Enrollment, error) {
	course, err := s.lookupCourse(courseID)
	if err != nil {
		return nil, err
	}

	var existing models.Enrollment
	if err := s.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error; err == nil {
		return nil, ErrAlreadyEnrolled
	}

	price := course.Price
	if priceOverride != nil {
		price = *priceOverride
	}

	enrollment := models.Enrollment{
		UserID:        userID,
		CourseID:      courseID,
		Price:         price,
		Status:        models.EnrollmentStatusPending,
		Progress:      0,
		PaymentMethod: paymentMethod,
		EnrolledAt:    time.Now(),
	}

	tx := s.db.Begin()
	if err := tx.Create(&enrollment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with another entry point; same answer.
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	tx.Commit()

	return &enrollment, nil
}

// CreateCheckout starts a purchase. Free courses short-circuit to a
// direct enrollment; paid courses get a hosted gateway session and no
// local record until the confirmation webhook arrives.
func (s *Service) CreateCheckout(userID, courseID uint) (*CheckoutResult, error) {
	course, err := s.lookupCourse(courseID)
	if err != nil {
		return nil, err
	}

	var existing models.Enrollment
	if err := s.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error; err == nil {
		return nil, ErrAlreadyEnrolled
	}

	if course.Price == 0 {
		enrollment, err := s.Enroll(userID, courseID, nil, models.PaymentMethodFree)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Enrollment: enrollment}, nil
	}

	if s.gateway == nil || !s.gateway.Configured() {
		return nil, ErrGatewayUnavailable
	}

	session, err := s.gateway.CreateCheckoutSession(course.Price, payments.CheckoutMetadata{
		UserID:      userID,
		CourseID:    courseID,
		CourseTitle: course.Title,
	})
	if err != nil {
		log.Printf("Checkout session creation failed for user %d course %d: %v", userID, courseID, err)
		return nil, ErrGatewayUnavailable
	}

	return &CheckoutResult{SessionID: session.ID, RedirectURL: session.URL}, nil
}

// CompleteCheckout reconciles a confirmed payment against the store.
// Safe to call any number of times for the same event: the session-id
// check, the pair check and the unique indexes each turn a replay into
// a no-op. Only store failures return an error, and those are marked
// retryable so the gateway redelivers.
func (s *Service) CompleteCheckout(ev payments.CheckoutCompleted) error {
	// Idempotency by session id comes first: a retried confirmation
	// for the same session must be a no-op even if another path has
	// since touched the pair's enrollment.
	var bySession models.Enrollment
	err := s.db.Where("gateway_session_id = ?", ev.SessionID).First(&bySession).Error
	if err == nil {
		log.Printf("[PAYMENTS] session %s already reconciled (enrollment %d), skipping", ev.SessionID, bySession.ID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return retryable(err)
	}

	userID, courseID, ok := parseCheckoutMetadata(ev.Metadata)
	if !ok {
		// Redelivery cannot repair a malformed event; acknowledge it.
		log.Printf("[PAYMENTS] session %s carries unusable metadata %v, acknowledging", ev.SessionID, ev.Metadata)
		return nil
	}

	// The pair may already be enrolled through another path: a second
	// tab, or an admin backfill.
	var byPair models.Enrollment
	err = s.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&byPair).Error
	if err == nil {
		if byPair.Status == models.EnrollmentStatusRefunded {
			// Gateway retries can arrive days late. An administrator
			// may have refunded this enrollment in the meantime; a
			// stale confirmation must never resurrect it.
			log.Printf("[PAYMENTS] session %s targets refunded enrollment %d, acknowledging without change", ev.SessionID, byPair.ID)
			return nil
		}

		updates := map[string]interface{}{
			"gateway_session_id": ev.SessionID,
			"gateway_payment_id": ev.PaymentID,
			"payment_method":     models.PaymentMethodGateway,
		}
		if err := s.db.Model(&byPair).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A concurrent delivery attached these ids already.
				return nil
			}
			return retryable(err)
		}
		log.Printf("[PAYMENTS] session %s attached to existing enrollment %d", ev.SessionID, byPair.ID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return retryable(err)
	}

	sessionID := ev.SessionID
	paymentID := ev.PaymentID
	enrollment := models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		// The settled amount is authoritative, not the catalog price:
		// the catalog may have changed between session creation and
		// confirmation.
		Price:            ev.AmountTotal,
		Status:           models.EnrollmentStatusPending,
		Progress:         0,
		PaymentMethod:    models.PaymentMethodGateway,
		GatewaySessionID: &sessionID,
		GatewayPaymentID: &paymentID,
		EnrolledAt:       time.Now(),
	}

	if err := s.db.Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Two deliveries raced past the checks above; the unique
			// index picked a winner and this is the loser.
			log.Printf("[PAYMENTS] session %s lost an insert race, already processed", ev.SessionID)
			return nil
		}
		return retryable(err)
	}

	log.Printf("[PAYMENTS] session %s created enrollment %d for user %d course %d (amount %.2f)",
		ev.SessionID, enrollment.ID, userID, courseID, ev.AmountTotal)

	// Best-effort receipt. A notification failure must never fail the
	// callback or undo the enrollment.
	var user models.User
	if err := s.db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		log.Printf("[PAYMENTS] user %d not found for receipt email: %v", userID, err)
		return nil
	}
	if s.mailer != nil {
		s.mailer.SendReceipt(user.Email, user.Name, ev.Metadata["course_title"], ev.AmountTotal, ev.PaymentID)
	}

	return nil
}

// ExpireCheckout handles an abandoned checkout session. No enrollment
// was ever created for it, so there is nothing to reconcile.
func (s *Service) ExpireCheckout(ev payments.CheckoutExpired) {
	log.Printf("[PAYMENTS] checkout session %s expired without payment", ev.SessionID)
}

// UpdateStatus sets an enrollment's status by admin action. Completing
// stamps completedAt and forces progress to 100. No transition is
// blocked here; only the webhook path treats REFUNDED as terminal.
func (s *Service) UpdateStatus(enrollmentID uint, status string) (*models.Enrollment, error) {
	switch status {
	case models.EnrollmentStatusPending, models.EnrollmentStatusCompleted, models.EnrollmentStatusRefunded:
	default:
		return nil, ErrInvalidStatus
	}

	var enrollment models.Enrollment
	if err := s.db.Where("id = ?", enrollmentID).First(&enrollment).Error; err != nil {
		return nil, ErrEnrollmentNotFound
	}

	enrollment.Status = status
	if status == models.EnrollmentStatusCompleted {
		now := time.Now()
		enrollment.CompletedAt = &now
		enrollment.Progress = 100
	}

	if err := s.db.Save(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateProgress sets the owner's progress on their enrollment.
// Reaching 100 auto-completes; anything below 100 never regresses the
// status.
func (s *Service) UpdateProgress(enrollmentID, userID uint, progress int) (*models.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrProgressOutOfRange
	}

	var enrollment models.Enrollment
	if err := s.db.Where("id = ? AND user_id = ?", enrollmentID, userID).First(&enrollment).Error; err != nil {
		return nil, ErrEnrollmentNotFound
	}

	enrollment.Progress = progress
	if progress == 100 && enrollment.Status != models.EnrollmentStatusCompleted {
		now := time.Now()
		enrollment.Status = models.EnrollmentStatusCompleted
		enrollment.CompletedAt = &now
	}

	if err := s.db.Save(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Refund marks an enrollment refunded. Refunding twice is a caller
// bug, not a no-op. Price, progress and the gateway identifiers stay
// untouched; reversing the charge at the gateway is an operational
// action outside this service.
func (s *Service) Refund(enrollmentID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.db.Where("id = ?", enrollmentID).First(&enrollment).Error; err != nil {
		return nil, ErrEnrollmentNotFound
	}

	if enrollment.Status == models.EnrollmentStatusRefunded {
		return nil, ErrAlreadyRefunded
	}

	enrollment.Status = models.EnrollmentStatusRefunded
	if err := s.db.Save(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// GetBySessionID finds the enrollment a checkout session produced.
// Clients poll this after the gateway redirect while the webhook is in
// flight.
func (s *Service) GetBySessionID(sessionID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.db.Where("gateway_session_id = ?", sessionID).First(&enrollment).Error; err != nil {
		return nil, ErrEnrollmentNotFound
	}
	return &enrollment, nil
}

// Delete removes an enrollment permanently (administrative action,
// independent of payment state). Hard delete, so the unique indexes
// keep describing live rows only.
func (s *Service) Delete(enrollmentID uint) error {
	var enrollment models.Enrollment
	if err := s.db.Where("id = ?", enrollmentID).First(&enrollment).Error; err != nil {
		return ErrEnrollmentNotFound
	}
	return s.db.Unscoped().Delete(&enrollment).Error
}

func (s *Service) lookupCourse(courseID uint) (*models.Course, error) {
	var course models.Course
	if err := s.db.Where("id = ? AND is_deleted = ?", courseID, false).First(&course).Error; err != nil {
		return nil, ErrCourseNotFound
	}
	if !course.IsPublished {
		return nil, ErrCourseNotPublished
	}
	return &course, nil
}

func parseCheckoutMetadata(meta map[string]string) (userID, courseID uint, ok bool) {
	u, err := strconv.ParseUint(meta["user_id"], 10, 32)
	if err != nil || u == 0 {
		return 0, 0, false
	}
	c, err := strconv.ParseUint(meta["course_id"], 10, 32)
	if err != nil || c == 0 {
		return 0, 0, false
	}
	return uint(u), uint(c), true
}
