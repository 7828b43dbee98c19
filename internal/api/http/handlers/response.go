package handlers

import "github.com/gofiber/fiber/v2"

// success writes the standard envelope.
func success(c *fiber.Ctx, status int, message string, data any) error {
	if data == nil {
		data = fiber.Map{}
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}
