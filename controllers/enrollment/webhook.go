package enrollmentController

import (
	"lms/config"
	"lms/middleware"
	"lms/payments"
	"lms/services/enroll"
	"log"

	"github.com/gofiber/fiber/v2"
)

// HandleGatewayWebhook receives asynchronous payment notifications.
// The gateway delivers at-least-once with retries spread over days, so
// the response code is the only control we have over redelivery:
// everything is acknowledged with 200 except a transient store
// failure, which returns 503 so the gateway tries again.
func (ct *Controller) HandleGatewayWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get(payments.SignatureHeader)

	if !payments.VerifySignature(payload, signature, config.AppConfig.PayWebhookSecret) {
		// Acknowledge so an unverifiable event is not redelivered
		// forever, but keep a security-relevant trace.
		log.Printf("[PAYMENTS] webhook signature verification failed from %s", c.IP())
		return middleware.JsonResponse(c, fiber.StatusOK, false, "Signature verification failed, event ignored.", nil)
	}

	event, err := payments.ParseEvent(payload)
	if err != nil {
		log.Printf("[PAYMENTS] unparseable webhook payload: %v", err)
		return middleware.JsonResponse(c, fiber.StatusOK, false, "Malformed event, ignored.", nil)
	}

	switch ev := event.(type) {
	case payments.CheckoutCompleted:
		if err := ct.Svc.CompleteCheckout(ev); err != nil {
			if enroll.IsRetryable(err) {
				log.Printf("[PAYMENTS] store failure for session %s, requesting redelivery: %v", ev.SessionID, err)
				return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Temporary failure, please retry.", nil)
			}
			log.Printf("[PAYMENTS] unexpected error for session %s: %v", ev.SessionID, err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event.", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event processed.", nil)

	case payments.CheckoutExpired:
		ct.Svc.ExpireCheckout(ev)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event processed.", nil)

	default:
		log.Printf("[PAYMENTS] ignoring unhandled event type %q", event.EventType())
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event type not handled.", nil)
	}
}
