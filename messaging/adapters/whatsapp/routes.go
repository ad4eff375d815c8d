package whatsapp

import "github.com/gofiber/fiber/v2"

// RegisterRoutes monta el webhook de WhatsApp
func RegisterRoutes(app *fiber.App, handler *WebhookHandler) {
	webhook := app.Group("/webhook/whatsapp")

	webhook.Get("/", handler.VerifyWebhook)
	webhook.Post("/", handler.HandleWebhook)
}
