package genesys

import "github.com/gofiber/fiber/v2"

// RegisterRoutes monta el webhook de Genesys
func RegisterRoutes(app *fiber.App, handler *WebhookHandler) {
	app.Post("/webhook/genesys", handler.HandleWebhook)
}
