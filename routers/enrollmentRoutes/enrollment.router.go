package enrollmentRoutes

import (
	controllers "lms/controllers/enrollment"
	"lms/middleware"
	validators "lms/validators/enrollment"

	"github.com/gofiber/fiber/v2"
)

// SetupEnrollmentRoutes sets up user-facing enrollment routes
func SetupEnrollmentRoutes(app *fiber.App, ct *controllers.Controller) {
	courseGroup := app.Group("/course")

	// Enrollment and purchase
	courseGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.CourseID(), ct.EnrollInCourse)
	courseGroup.Post("/:id/checkout", middleware.JWTMiddleware, validators.CourseID(), ct.CreateCheckout)

	userGroup := app.Group("/user")
	userGroup.Get("/enrollments", middleware.JWTMiddleware, validators.EnrollmentList(), ct.GetEnrollments)

	enrollGroup := app.Group("/enrollment")
	enrollGroup.Put("/:id/progress", middleware.JWTMiddleware, validators.EnrollmentID(), validators.UpdateProgress(), ct.UpdateProgress)
	enrollGroup.Get("/session/:session_id", middleware.JWTMiddleware, validators.SessionID(), ct.GetEnrollmentBySession)
}

// SetupAdminEnrollmentRoutes sets up admin enrollment management routes
func SetupAdminEnrollmentRoutes(app *fiber.App, ct *controllers.Controller) {
	adminGroup := app.Group("/admin/enrollment")

	adminGroup.Post("/create", middleware.JWTMiddleware, middleware.RequireAdmin, validators.AdminCreateEnrollment(), ct.AdminCreateEnrollment)
	adminGroup.Put("/:id/status", middleware.JWTMiddleware, middleware.RequireAdmin, validators.EnrollmentID(), validators.UpdateStatus(), ct.AdminUpdateStatus)
	adminGroup.Post("/:id/refund", middleware.JWTMiddleware, middleware.RequireAdmin, validators.EnrollmentID(), ct.AdminRefundEnrollment)
	adminGroup.Delete("/:id", middleware.JWTMiddleware, middleware.RequireAdmin, validators.EnrollmentID(), ct.AdminDeleteEnrollment)

	adminCourseGroup := app.Group("/admin/course")
	adminCourseGroup.Get("/:id/enrollments", middleware.JWTMiddleware, middleware.RequireAdmin, validators.CourseID(), validators.EnrollmentList(), ct.AdminGetCourseEnrollments)
}
