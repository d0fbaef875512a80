package utils

// ReceiptMailer adapts the SMTP helpers to the enrollment engine's
// Notifier interface. Sends are fire-and-forget goroutines, so a slow
// or failing SMTP server never blocks a webhook.
type ReceiptMailer struct{}

func (ReceiptMailer) SendReceipt(email, name, courseTitle string, amount float64, paymentID string) {
	SendReceiptEmail(email, name, courseTitle, amount, paymentID)
}
