package paymentRoutes

import (
	controllers "lms/controllers/enrollment"

	"github.com/gofiber/fiber/v2"
)

// SetupPaymentRoutes registers the gateway webhook endpoint. No JWT
// here: the gateway authenticates with the HMAC signature header.
func SetupPaymentRoutes(app *fiber.App, ct *controllers.Controller) {
	app.Post("/payments/webhook", ct.HandleGatewayWebhook)
}
