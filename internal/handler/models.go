package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/epub-counter/api/internal/tokenizer"
	"github.com/epub-counter/api/pkg/response"
)

// ListModels handles GET /api/list-models
func ListModels(c *fiber.Ctx) error {
	return response.Success(c, tokenizer.Available())
}

// Health handles GET /api/health
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
