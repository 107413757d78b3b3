package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/swaggo/swag"
	"github.com/waflawe/Omenforcer/backend/utils"

	_ "github.com/waflawe/Omenforcer/backend/docs"
)

// Schema serves the OpenAPI document of the REST API.
func Schema(c *fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return utils.InternalServerError(c, "Schema is not available")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(doc)
}
