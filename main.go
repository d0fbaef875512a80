package main

import (
	"lms/config"
	enrollmentController "lms/controllers/enrollment"
	"lms/database"
	"lms/payments"
	authRoutes "lms/routers/authRoutes"
	courseRoutes "lms/routers/courseRoutes"
	enrollmentRoutes "lms/routers/enrollmentRoutes"
	paymentRoutes "lms/routers/paymentRoutes"
	"lms/services/enroll"
	"lms/utils"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	// Payment gateway client and the enrollment engine built around it
	gateway := payments.NewClient(payments.ClientOptions{
		BaseURL:       config.AppConfig.PayGatewayURL,
		APIKey:        config.AppConfig.PayGatewayKey,
		WebhookSecret: config.AppConfig.PayWebhookSecret,
		SuccessURL:    config.AppConfig.CheckoutSuccess,
		CancelURL:     config.AppConfig.CheckoutCancel,
		Currency:      config.AppConfig.CheckoutCurrency,
	})
	engine := enroll.NewService(database.Database.Db, gateway, utils.ReceiptMailer{})
	enrollmentCtrl := enrollmentController.NewController(engine)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization," + payments.SignatureHeader,
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	authRoutes.SetupAuthRoutes(app)
	courseRoutes.SetupCourseRoutes(app)
	courseRoutes.SetupAdminCourseRoutes(app)
	enrollmentRoutes.SetupEnrollmentRoutes(app, enrollmentCtrl)
	enrollmentRoutes.SetupAdminEnrollmentRoutes(app, enrollmentCtrl)
	paymentRoutes.SetupPaymentRoutes(app, enrollmentCtrl)

	utils.InitializeEnrollmentScheduler()

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
