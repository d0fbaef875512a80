package enrollmentController

import (
	"errors"
	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/enroll"

	"github.com/gofiber/fiber/v2"
)

// Controller wraps the enrollment engine. The engine is built once in
// main with its store/gateway/notifier dependencies and handed to the
// routers, instead of the handlers reaching for a package global.
type Controller struct {
	Svc *enroll.Service
}

func NewController(svc *enroll.Service) *Controller {
	return &Controller{Svc: svc}
}

func serviceErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, enroll.ErrCourseNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	case errors.Is(err, enroll.ErrCourseNotPublished):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Course is not published!", nil)
	case errors.Is(err, enroll.ErrAlreadyEnrolled):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "User already enrolled in this course!", nil)
	case errors.Is(err, enroll.ErrEnrollmentNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Enrollment not found!", nil)
	case errors.Is(err, enroll.ErrAlreadyRefunded):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Enrollment already refunded!", nil)
	case errors.Is(err, enroll.ErrInvalidStatus):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid enrollment status!", nil)
	case errors.Is(err, enroll.ErrProgressOutOfRange):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Progress must be between 0 and 100!", nil)
	case errors.Is(err, enroll.ErrGatewayUnavailable):
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Payment gateway unavailable, try again later!", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
	}
}

// EnrollInCourse enrolls the caller directly (free/simulated path)
func (ct *Controller) EnrollInCourse(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	courseID := c.Locals("courseID").(int)

	enrollment, err := ct.Svc.Enroll(userID, uint(courseID), nil, "")
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrolled in course successfully!", enrollment)
}

// CreateCheckout starts a purchase: free courses enroll immediately,
// paid courses get a gateway redirect.
func (ct *Controller) CreateCheckout(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	courseID := c.Locals("courseID").(int)

	result, err := ct.Svc.CreateCheckout(userID, uint(courseID))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	if result.Enrollment != nil {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "No payment needed, enrolled directly!", result)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Checkout session created!", result)
}

// UpdateProgress sets the caller's progress on their own enrollment
func (ct *Controller) UpdateProgress(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	enrollmentID := c.Locals("enrollmentID").(int)
	reqData, ok := c.Locals("validatedProgress").(*struct {
		Progress *int `json:"progress"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	enrollment, err := ct.Svc.UpdateProgress(uint(enrollmentID), userID, *reqData.Progress)
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress updated successfully!", enrollment)
}

// GetEnrollmentBySession lets a client poll for the enrollment created
// by a checkout session after the gateway redirect.
func (ct *Controller) GetEnrollmentBySession(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	sessionID := c.Locals("sessionID").(string)

	enrollment, err := ct.Svc.GetBySessionID(sessionID)
	if err != nil {
		return serviceErrorResponse(c, err)
	}
	if enrollment.UserID != userID {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Enrollment not found!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment fetched successfully!", enrollment)
}

// GetEnrollments lists the caller's enrollments, paginated
func (ct *Controller) GetEnrollments(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	reqData, _ := c.Locals("validatedEnrollmentList").(*struct {
		Page  *int `json:"page"`
		Limit *int `json:"limit"`
	})

	page := 1
	limit := 10
	if reqData != nil && reqData.Page != nil {
		page = *reqData.Page
	}
	if reqData != nil && reqData.Limit != nil {
		limit = *reqData.Limit
	}
	offset := (page - 1) * limit

	db := database.Database.Db.Model(&models.Enrollment{}).Where("user_id = ?", userID).Preload("Course")

	var total int64
	db.Count(&total)

	var enrollments []models.Enrollment
	if err := db.Offset(offset).Limit(limit).Order("created_at desc").Find(&enrollments).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
	}

	response := map[string]interface{}{
		"enrollments": enrollments,
		"pagination": map[string]interface{}{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", response)
}
