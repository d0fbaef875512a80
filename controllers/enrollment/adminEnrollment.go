package enrollmentController

import (
	"lms/database"
	"lms/middleware"
	"lms/models"

	"github.com/gofiber/fiber/v2"
)

// AdminCreateEnrollment enrolls a user by admin action, optionally with
// a price override (backfill path).
func (ct *Controller) AdminCreateEnrollment(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedAdminEnrollment").(*struct {
		UserID   *uint    `json:"user_id"`
		CourseID *uint    `json:"course_id"`
		Price    *float64 `json:"price"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", *reqData.UserID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	enrollment, err := ct.Svc.Enroll(*reqData.UserID, *reqData.CourseID, reqData.Price, "")
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Enrollment created successfully!", enrollment)
}

// AdminUpdateStatus sets an enrollment's status
func (ct *Controller) AdminUpdateStatus(c *fiber.Ctx) error {
	enrollmentID := c.Locals("enrollmentID").(int)
	reqData, ok := c.Locals("validatedStatus").(*struct {
		Status string `json:"status"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	enrollment, err := ct.Svc.UpdateStatus(uint(enrollmentID), reqData.Status)
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment status updated successfully!", enrollment)
}

// AdminRefundEnrollment marks an enrollment refunded. Reversing the
// charge at the gateway is a separate operational action.
func (ct *Controller) AdminRefundEnrollment(c *fiber.Ctx) error {
	enrollmentID := c.Locals("enrollmentID").(int)

	enrollment, err := ct.Svc.Refund(uint(enrollmentID))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment refunded successfully!", enrollment)
}

// AdminDeleteEnrollment removes an enrollment permanently
func (ct *Controller) AdminDeleteEnrollment(c *fiber.Ctx) error {
	enrollmentID := c.Locals("enrollmentID").(int)

	if err := ct.Svc.Delete(uint(enrollmentID)); err != nil {
		return serviceErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment deleted successfully!", nil)
}

// AdminGetCourseEnrollments lists enrollments for a course, paginated
func (ct *Controller) AdminGetCourseEnrollments(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(int)

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

	db := database.Database.Db.Model(&models.Enrollment{}).Where("course_id = ?", courseID)

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
